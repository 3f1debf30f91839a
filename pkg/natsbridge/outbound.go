package natsbridge

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-bridge/pkg/codec"
	"github.com/morezero/native-bridge/pkg/commsutil"
	"github.com/morezero/native-bridge/pkg/protocol"
)

const outboundLogPrefix = "natsbridge:outbound"

// ScriptCaller sends calls to the script side. *bridge.Bridge satisfies it.
type ScriptCaller interface {
	CallJS(tag, method string, args protocol.Args)
	Reply(callbackID int, args protocol.Args)
}

// OutboundServer lets native services in other processes call the script side.
type OutboundServer struct {
	nc      *comms.Conn
	subject string
	target  ScriptCaller
	sub     *comms.Subscription
}

// NewOutboundServer creates an OutboundServer. An empty subject uses commsutil.SubjectOutbound.
func NewOutboundServer(nc *comms.Conn, subject string, target ScriptCaller) *OutboundServer {
	if subject == "" {
		subject = commsutil.SubjectOutbound
	}
	return &OutboundServer{nc: nc, subject: subject, target: target}
}

// Start subscribes to the outbound subject.
func (s *OutboundServer) Start() error {
	sub, err := s.nc.Subscribe(s.subject, s.handle)
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", outboundLogPrefix, s.subject, err)
	}
	s.sub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", outboundLogPrefix, s.subject))
	return nil
}

// Stop unsubscribes.
func (s *OutboundServer) Stop() error {
	if s.sub == nil {
		return nil
	}
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("%s - failed to unsubscribe from %s: %w", outboundLogPrefix, s.subject, err)
	}
	return nil
}

func (s *OutboundServer) handle(msg *comms.Msg) {
	var out OutboundMessage
	if err := commsutil.DecodePayload(msg.Data, &out); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode message: %v", outboundLogPrefix, err))
		s.respond(msg, errorResponse(protocol.CodeMalformedPayload, "Failed to decode message"))
		return
	}

	var args protocol.Args
	if len(out.Args) > 0 && string(out.Args) != "null" {
		decoded, err := codec.DecodeArgs(string(out.Args))
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - dropping message with bad args: %v", outboundLogPrefix, err))
			s.respond(msg, errorResponse(protocol.CodeMalformedPayload, err.Error()))
			return
		}
		args = decoded
	}

	switch {
	case out.Reply:
		if out.CallbackID == protocol.NoCallback {
			s.respond(msg, errorResponse(protocol.CodeMalformedPayload, "reply requires callbackId"))
			return
		}
		s.target.Reply(out.CallbackID, args)
	case out.Tag == "" || out.Method == "":
		s.respond(msg, errorResponse(protocol.CodeMalformedPayload, "tag and method are required"))
		return
	default:
		s.target.CallJS(out.Tag, out.Method, args)
	}
	s.respond(msg, &CallResponse{Ok: true})
}

func (s *OutboundServer) respond(msg *comms.Msg, resp *CallResponse) {
	if msg.Reply == "" {
		return
	}
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", outboundLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond: %v", outboundLogPrefix, err))
	}
}
