package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/morezero/native-bridge/pkg/protocol"
)

// EncodeCallURL builds the navigation URL a script host uses for an inbound call:
// js:WebViewCommunicator/<tag>/<method>/<callbackId>/<args>.
func EncodeCallURL(req *protocol.NativeCallRequest) (string, error) {
	parts := make([]string, 0, 4)
	for _, s := range []string{req.Tag, req.Method} {
		esc, err := Escape(s)
		if err != nil {
			return "", err
		}
		parts = append(parts, esc)
	}
	parts = append(parts, strconv.Itoa(req.CallbackID))
	args, err := Escape(req.Args)
	if err != nil {
		return "", err
	}
	parts = append(parts, args)
	return protocol.CallURLPrefix + strings.Join(parts, "/"), nil
}

// ParseCallURL parses a call URL. A missing args segment means an empty argument list.
// The arguments are returned as text; decoding them is the router's job.
func ParseCallURL(raw string) (*protocol.NativeCallRequest, error) {
	if !strings.HasPrefix(raw, protocol.CallURLPrefix) {
		return nil, protocol.NewError(protocol.CodeInvalidURL, fmt.Sprintf("missing %q prefix", protocol.CallURLPrefix), nil)
	}
	segs := strings.SplitN(raw[len(protocol.CallURLPrefix):], "/", 4)
	if len(segs) < 3 {
		return nil, protocol.NewError(protocol.CodeInvalidURL, "expected tag/method/callbackId[/args]", nil)
	}

	tag, err := Unescape(segs[0])
	if err != nil {
		return nil, protocol.NewError(protocol.CodeInvalidURL, "tag", err)
	}
	method, err := Unescape(segs[1])
	if err != nil {
		return nil, protocol.NewError(protocol.CodeInvalidURL, "method", err)
	}
	cb, err := strconv.Atoi(segs[2])
	if err != nil {
		return nil, protocol.NewError(protocol.CodeInvalidURL, "callback id is not an integer", err)
	}
	if tag == "" || method == "" {
		return nil, protocol.NewError(protocol.CodeInvalidURL, "tag and method are required", nil)
	}

	args := "[]"
	if len(segs) == 4 && segs[3] != "" {
		args, err = Unescape(segs[3])
		if err != nil {
			return nil, protocol.NewError(protocol.CodeInvalidURL, "args", err)
		}
	}
	return &protocol.NativeCallRequest{Tag: tag, Method: method, CallbackID: cb, Args: args}, nil
}
