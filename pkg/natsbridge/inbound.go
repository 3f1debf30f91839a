package natsbridge

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-bridge/pkg/commsutil"
	"github.com/morezero/native-bridge/pkg/engine"
	"github.com/morezero/native-bridge/pkg/protocol"
)

const inboundLogPrefix = "natsbridge:inbound"

// InboundServer answers CallRequests published by a remote script host.
type InboundServer struct {
	nc      *comms.Conn
	subject string
	caller  engine.NativeCaller
	sub     *comms.Subscription
}

// NewInboundServer creates an InboundServer. An empty subject uses commsutil.SubjectNativeCall.
func NewInboundServer(nc *comms.Conn, subject string, caller engine.NativeCaller) *InboundServer {
	if subject == "" {
		subject = commsutil.SubjectNativeCall
	}
	return &InboundServer{nc: nc, subject: subject, caller: caller}
}

// Start subscribes to the call subject.
func (s *InboundServer) Start() error {
	sub, err := s.nc.Subscribe(s.subject, s.handle)
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", inboundLogPrefix, s.subject, err)
	}
	s.sub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", inboundLogPrefix, s.subject))
	return nil
}

// Stop unsubscribes.
func (s *InboundServer) Stop() error {
	if s.sub == nil {
		return nil
	}
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("%s - failed to unsubscribe from %s: %w", inboundLogPrefix, s.subject, err)
	}
	return nil
}

func (s *InboundServer) handle(msg *comms.Msg) {
	var req CallRequest
	if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", inboundLogPrefix, err))
		s.respond(msg, errorResponse(protocol.CodeMalformedPayload, "Failed to decode request"))
		return
	}
	if req.Tag == "" || req.Method == "" {
		s.respond(msg, errorResponse(protocol.CodeMalformedPayload, "tag and method are required"))
		return
	}
	if req.Args == "" {
		req.Args = "[]"
	}

	s.respond(msg, &CallResponse{Ok: s.caller.NativeCall(req.Tag, req.Method, req.CallbackID, req.Args)})
}

func (s *InboundServer) respond(msg *comms.Msg, resp *CallResponse) {
	if msg.Reply == "" {
		return
	}
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", inboundLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond: %v", inboundLogPrefix, err))
	}
}
