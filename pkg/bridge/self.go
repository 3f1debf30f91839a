package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/morezero/native-bridge/pkg/codec"
	"github.com/morezero/native-bridge/pkg/protocol"
	"github.com/morezero/native-bridge/pkg/semver"
)

const selfLogPrefix = "bridge:self"

// selfReceiver handles the reserved __self tag on the native side.
type selfReceiver struct {
	bridge   *Bridge
	versions *semver.Range
}

func (s *selfReceiver) Receive(_ context.Context, method string, callbackID int, args protocol.Args) {
	switch method {
	case protocol.MethodLog:
		slog.Info(fmt.Sprintf("%s - script: %s", selfLogPrefix, formatArgs(args)))
	case protocol.MethodHandshake:
		s.handshake(callbackID, args)
	default:
		slog.Warn(fmt.Sprintf("%s - Unknown %s method %q ignored", selfLogPrefix, protocol.SelfTag, method))
	}
}

// handshake checks the counterpart version in args[0] and, when the script asked for a reply,
// answers [compatible, nativeVersion].
func (s *selfReceiver) handshake(callbackID int, args protocol.Args) {
	var version string
	if len(args) > 0 {
		version, _ = args[0].(string)
	}

	compatible, err := s.versions.Check(version)
	switch {
	case err != nil:
		slog.Warn(fmt.Sprintf("%s - Handshake with unparseable version: %v", selfLogPrefix, err))
	case !compatible:
		slog.Warn(fmt.Sprintf("%s - Script counterpart %s does not satisfy %s", selfLogPrefix, version, s.versions))
	default:
		slog.Info(fmt.Sprintf("%s - Script counterpart %s connected", selfLogPrefix, version))
	}

	s.bridge.peer.Store(&Peer{Version: version, Compatible: compatible})
	if callbackID != protocol.NoCallback {
		s.bridge.invoker.Reply(callbackID, protocol.Args{compatible, protocol.ProtocolVersion})
	}
}

func formatArgs(args protocol.Args) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			parts[i] = s
			continue
		}
		text, err := codec.Encode(a)
		if err != nil {
			text = fmt.Sprint(a)
		}
		parts[i] = text
	}
	return strings.Join(parts, " ")
}
