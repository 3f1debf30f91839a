// Package journal records the dispatch decisions the bridge makes, for auditing and debugging.
package journal

import (
	"time"

	"github.com/google/uuid"

	"github.com/morezero/native-bridge/pkg/protocol"
)

// Outcome is the result of one dispatch decision.
type Outcome string

// Inbound outcomes.
const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeUnknownTag Outcome = "unknown_tag"
	OutcomeMalformed  Outcome = "malformed"
	OutcomeRejected   Outcome = "rejected"
)

// Outbound outcomes.
const (
	OutcomeSent            Outcome = "sent"
	OutcomeEncodingFailure Outcome = "encoding_failure"
	OutcomeDropped         Outcome = "dropped"
	OutcomeScriptError     Outcome = "script_error"
)

// Entry is one journaled call.
type Entry struct {
	ID         uuid.UUID          `json:"id"`
	Direction  protocol.Direction `json:"direction"`
	Tag        string             `json:"tag"`
	Method     string             `json:"method"`
	CallbackID int                `json:"callbackId,omitempty"`
	Outcome    Outcome            `json:"outcome"`
	Detail     string             `json:"detail,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// NewEntry creates an Entry with a fresh id and the current UTC time.
func NewEntry(direction protocol.Direction, tag, method string, callbackID int, outcome Outcome, detail string) *Entry {
	return &Entry{
		ID:         uuid.New(),
		Direction:  direction,
		Tag:        tag,
		Method:     method,
		CallbackID: callbackID,
		Outcome:    outcome,
		Detail:     detail,
		Timestamp:  time.Now().UTC(),
	}
}
