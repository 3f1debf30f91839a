package natsbridge

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-bridge/pkg/commsutil"
	"github.com/morezero/native-bridge/pkg/protocol"
	"github.com/morezero/native-bridge/pkg/registry"
)

const relayLogPrefix = "natsbridge:relay"

// RelayReceiver forwards inbound calls for one tag to bridge.receiver.<tag>. The remote handler
// answers, when it wants to, with an OutboundMessage carrying reply=true and the callback id.
type RelayReceiver struct {
	nc      *comms.Conn
	tag     string
	subject string
}

var _ registry.Receiver = (*RelayReceiver)(nil)

// NewRelayReceiver creates a RelayReceiver for tag publishing to bridge.receiver.<tag>.
func NewRelayReceiver(nc *comms.Conn, tag string) *RelayReceiver {
	return NewRelayReceiverOn(nc, tag, "")
}

// NewRelayReceiverOn creates a RelayReceiver publishing to subject. An empty subject uses
// bridge.receiver.<tag>.
func NewRelayReceiverOn(nc *comms.Conn, tag, subject string) *RelayReceiver {
	if subject == "" {
		subject = commsutil.BuildReceiverSubject(tag)
	}
	return &RelayReceiver{nc: nc, tag: tag, subject: subject}
}

// Subject returns the subject calls are forwarded to.
func (r *RelayReceiver) Subject() string {
	return r.subject
}

// Receive publishes the call.
func (r *RelayReceiver) Receive(_ context.Context, method string, callbackID int, args protocol.Args) {
	if args == nil {
		args = protocol.Args{}
	}
	data, err := commsutil.EncodePayload(&RelayMessage{Tag: r.tag, Method: method, CallbackID: callbackID, Args: args})
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode %s/%s: %v", relayLogPrefix, r.tag, method, err))
		return
	}
	if err := r.nc.Publish(r.subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", relayLogPrefix, r.subject, err))
		return
	}
	slog.Debug(fmt.Sprintf("%s - Relayed %s/%s to %s", relayLogPrefix, r.tag, method, r.subject))
}
