package journal

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-bridge/pkg/commsutil"
)

const commsRecorderLogPrefix = "journal:comms_recorder"

// CommsRecorderOpts configures CommsRecorder. Nil or zero values use defaults.
type CommsRecorderOpts struct {
	// Subject overrides the journal subject (e.g. from BRIDGE_JOURNAL_SUBJECT).
	Subject string
}

// CommsRecorder publishes entries to COMMS subjects.
type CommsRecorder struct {
	nc      *comms.Conn
	subject string
}

// NewCommsRecorder creates a new CommsRecorder. Pass nil for opts to use defaults.
func NewCommsRecorder(nc *comms.Conn, opts *CommsRecorderOpts) *CommsRecorder {
	subject := commsutil.SubjectJournal
	if opts != nil && opts.Subject != "" {
		subject = opts.Subject
	}
	return &CommsRecorder{nc: nc, subject: subject}
}

// Record publishes entry to the granular subject <subject>.<direction>.<tag> and to the global
// subject.
func (r *CommsRecorder) Record(_ context.Context, entry *Entry) error {
	data, err := commsutil.EncodePayload(entry)
	if err != nil {
		return fmt.Errorf("%s - failed to encode entry: %w", commsRecorderLogPrefix, err)
	}

	granular := commsutil.BuildJournalSubject(r.subject, string(entry.Direction), entry.Tag)
	if err := r.nc.Publish(granular, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsRecorderLogPrefix, granular, err))
		return err
	}

	if err := r.nc.Publish(r.subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsRecorderLogPrefix, r.subject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s %s/%s %s", commsRecorderLogPrefix, entry.Direction, entry.Tag, entry.Method, entry.Outcome))
	return nil
}
