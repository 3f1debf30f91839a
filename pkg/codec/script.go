package codec

import (
	"fmt"
	"strings"

	"github.com/morezero/native-bridge/pkg/protocol"
)

const nullLiteral = "null"

// BuildRaiseEvent serializes an outbound call into the script expression the counterpart
// dispatches, e.g. WebViewCommunicator.raiseEvent('ui','show','%5B1%5D').
// Every field is escaped, so the expression cannot be broken out of.
func BuildRaiseEvent(desc *protocol.CallDescriptor) (string, error) {
	tag, err := Escape(desc.Tag)
	if err != nil {
		return "", fmt.Errorf("tag: %w", err)
	}
	method, err := Escape(desc.Method)
	if err != nil {
		return "", fmt.Errorf("method: %w", err)
	}

	argsLiteral := nullLiteral
	if desc.Args != nil {
		text, err := EncodeArgs(desc.Args)
		if err != nil {
			return "", fmt.Errorf("args: %w", err)
		}
		escaped, err := Escape(text)
		if err != nil {
			return "", fmt.Errorf("args: %w", err)
		}
		argsLiteral = "'" + escaped + "'"
	}

	return fmt.Sprintf("%s.%s('%s','%s',%s)", protocol.GlobalObject, protocol.RaiseEvent, tag, method, argsLiteral), nil
}

// ParseRaiseEvent is the inverse of BuildRaiseEvent. Remote script hosts written in Go and
// tests use it to recover the descriptor from a script.
func ParseRaiseEvent(script string) (*protocol.CallDescriptor, error) {
	prefix := protocol.GlobalObject + "." + protocol.RaiseEvent + "("
	if !strings.HasPrefix(script, prefix) || !strings.HasSuffix(script, ")") {
		return nil, protocol.NewError(protocol.CodeMalformedPayload, "not a raiseEvent expression", nil)
	}
	fields := strings.Split(script[len(prefix):len(script)-1], ",")
	if len(fields) != 3 {
		return nil, protocol.NewError(protocol.CodeMalformedPayload,
			fmt.Sprintf("raiseEvent expects 3 arguments, got %d", len(fields)), nil)
	}

	values := make([]string, 3)
	for i, f := range fields {
		if i == 2 && f == nullLiteral {
			continue
		}
		if len(f) < 2 || f[0] != '\'' || f[len(f)-1] != '\'' {
			return nil, protocol.NewError(protocol.CodeMalformedPayload, "raiseEvent argument is not a quoted string", nil)
		}
		v, err := Unescape(f[1 : len(f)-1])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	desc := &protocol.CallDescriptor{Tag: values[0], Method: values[1]}
	if fields[2] != nullLiteral {
		args, err := DecodeArgs(values[2])
		if err != nil {
			return nil, err
		}
		desc.Args = args
	}
	return desc, nil
}
