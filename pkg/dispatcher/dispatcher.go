// Package dispatcher routes inbound script-to-native calls to registered receivers.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/native-bridge/pkg/codec"
	"github.com/morezero/native-bridge/pkg/journal"
	"github.com/morezero/native-bridge/pkg/metrics"
	"github.com/morezero/native-bridge/pkg/protocol"
	"github.com/morezero/native-bridge/pkg/registry"
)

const logPrefix = "dispatcher:dispatch"

// Submitter runs a task off the calling goroutine. *worker.Pool satisfies it.
type Submitter interface {
	Submit(name string, task func(ctx context.Context)) error
}

// ScriptLogger writes diagnostics to the script side. *invoker.Invoker satisfies it.
type ScriptLogger interface {
	Log(message string)
}

// Params holds the dependencies of a Dispatcher. Metrics and Journal are optional.
type Params struct {
	Registry *registry.Registry
	Pool     Submitter
	Script   ScriptLogger
	Metrics  *metrics.Metrics
	Journal  journal.Recorder
}

// Dispatcher decodes inbound calls and hands them to receivers on the worker pool.
type Dispatcher struct {
	registry *registry.Registry
	pool     Submitter
	script   ScriptLogger
	metrics  *metrics.Metrics
	journal  journal.Recorder
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(params Params) *Dispatcher {
	rec := params.Journal
	if rec == nil {
		rec = &journal.NoOpRecorder{}
	}
	return &Dispatcher{
		registry: params.Registry,
		pool:     params.Pool,
		script:   params.Script,
		metrics:  params.Metrics,
		journal:  rec,
	}
}

// UnknownTagMessage is the diagnostic sent to the script side's log for an unregistered tag.
func UnknownTagMessage(tag string) string {
	return fmt.Sprintf("Error: No object with tag '%s' registered on application", tag)
}

// RejectedMessage is the diagnostic sent to the script side's log when a registered receiver
// could not be scheduled.
func RejectedMessage(tag, method string, reason error) string {
	return fmt.Sprintf("Error: Call to '%s.%s' rejected by application: %v", tag, method, reason)
}

// NativeCall dispatches one inbound call. It returns true once the receiver has been handed to
// the worker pool, without waiting for it to run. It returns false when args cannot be decoded,
// when no receiver is registered under tag, and when the pool refuses the task. The last two also
// send a distinct diagnostic to the script side's log.
func (d *Dispatcher) NativeCall(tag, method string, callbackID int, args string) bool {
	slog.Debug(fmt.Sprintf("%s - tag=%s method=%s callbackId=%d", logPrefix, tag, method, callbackID))

	decoded, err := codec.DecodeArgs(args)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Dropping %s/%s: %v", logPrefix, tag, method, err))
		d.record(tag, method, callbackID, journal.OutcomeMalformed, err.Error())
		return false
	}

	receiver, ok := d.registry.Lookup(tag)
	if !ok {
		msg := UnknownTagMessage(tag)
		slog.Warn(fmt.Sprintf("%s - %v", logPrefix, protocol.NewError(protocol.CodeUnknownTag, msg, nil)))
		d.script.Log(msg)
		d.record(tag, method, callbackID, journal.OutcomeUnknownTag, "")
		return false
	}

	err = d.pool.Submit(tag+"/"+method, func(ctx context.Context) {
		start := time.Now()
		defer func() { d.metrics.ObserveReceiver(tag, time.Since(start)) }()
		receiver.Receive(ctx, method, callbackID, decoded)
	})
	if err != nil {
		rejected := protocol.NewError(protocol.CodeRejected, fmt.Sprintf("%s/%s not dispatched", tag, method), err)
		slog.Error(fmt.Sprintf("%s - %v", logPrefix, rejected))
		d.script.Log(RejectedMessage(tag, method, err))
		d.record(tag, method, callbackID, journal.OutcomeRejected, err.Error())
		return false
	}

	d.record(tag, method, callbackID, journal.OutcomeDispatched, "")
	return true
}

// HandleURL dispatches a call received as a navigation to a js:WebViewCommunicator/ URL.
func (d *Dispatcher) HandleURL(raw string) bool {
	req, err := codec.ParseCallURL(raw)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Ignoring call URL: %v", logPrefix, err))
		d.record("", "", protocol.NoCallback, journal.OutcomeMalformed, err.Error())
		return false
	}
	return d.NativeCall(req.Tag, req.Method, req.CallbackID, req.Args)
}

func (d *Dispatcher) record(tag, method string, callbackID int, outcome journal.Outcome, detail string) {
	d.metrics.Inbound(string(outcome))
	entry := journal.NewEntry(protocol.Inbound, tag, method, callbackID, outcome, detail)
	if err := d.journal.Record(context.Background(), entry); err != nil {
		slog.Debug(fmt.Sprintf("%s - Journal rejected entry: %v", logPrefix, err))
	}
}
