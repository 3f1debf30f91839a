package journal

import (
	"context"
	"errors"
)

// Recorder stores journal entries. Implementations must be safe for concurrent use and must not
// block for long; Record is called on dispatch paths.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}

// NoOpRecorder is a Recorder that does nothing (for in-process usage without a journal).
type NoOpRecorder struct{}

// Record is a no-op.
func (r *NoOpRecorder) Record(_ context.Context, _ *Entry) error {
	return nil
}

// CallbackRecorder is a Recorder that calls a callback function (for testing).
type CallbackRecorder struct {
	callback func(ctx context.Context, entry *Entry) error
}

// NewCallbackRecorder creates a new CallbackRecorder.
func NewCallbackRecorder(cb func(ctx context.Context, entry *Entry) error) *CallbackRecorder {
	return &CallbackRecorder{callback: cb}
}

// Record calls the callback.
func (r *CallbackRecorder) Record(ctx context.Context, entry *Entry) error {
	return r.callback(ctx, entry)
}

// MultiRecorder fans an entry out to several recorders.
type MultiRecorder []Recorder

// Record passes entry to every recorder and joins their errors.
func (m MultiRecorder) Record(ctx context.Context, entry *Entry) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
