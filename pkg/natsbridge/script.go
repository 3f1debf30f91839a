package natsbridge

import (
	"fmt"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-bridge/pkg/commsutil"
	"github.com/morezero/native-bridge/pkg/engine"
)

const scriptLogPrefix = "natsbridge:script"

// ScriptPublisher is an engine.Engine that hands each script to a remote script host by
// publishing it, as plain text, to a subject.
type ScriptPublisher struct {
	nc      *comms.Conn
	subject string
}

var _ engine.Engine = (*ScriptPublisher)(nil)

// NewScriptPublisher creates a ScriptPublisher. An empty subject uses commsutil.SubjectScript.
func NewScriptPublisher(nc *comms.Conn, subject string) *ScriptPublisher {
	if subject == "" {
		subject = commsutil.SubjectScript
	}
	return &ScriptPublisher{nc: nc, subject: subject}
}

// Execute publishes script.
func (p *ScriptPublisher) Execute(script string) error {
	if err := p.nc.Publish(p.subject, []byte(script)); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", scriptLogPrefix, p.subject, err)
	}
	return nil
}

// Subject returns the subject scripts are published to.
func (p *ScriptPublisher) Subject() string {
	return p.subject
}
