package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectNativeCall = "bridge.native.call"
	SubjectOutbound   = "bridge.native.outbound"
	SubjectScript     = "bridge.script.eval"
	SubjectJournal    = "bridge.calls"
	SubjectReceiver   = "bridge.receiver"
)

// SubjectToken makes s usable as a single subject token. Separators, wildcards and whitespace
// become underscores; an empty string becomes "_".
func SubjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// BuildReceiverSubject builds the subject a relayed receiver for tag listens on.
func BuildReceiverSubject(tag string) string {
	return fmt.Sprintf("%s.%s", SubjectReceiver, SubjectToken(tag))
}

// BuildJournalSubject builds a granular journal subject below base.
func BuildJournalSubject(base, direction, tag string) string {
	return fmt.Sprintf("%s.%s.%s", base, SubjectToken(direction), SubjectToken(tag))
}
