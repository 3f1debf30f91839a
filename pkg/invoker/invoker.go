// Package invoker delivers native-to-script calls by posting raiseEvent scripts to the owning loop.
package invoker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/native-bridge/pkg/codec"
	"github.com/morezero/native-bridge/pkg/engine"
	"github.com/morezero/native-bridge/pkg/journal"
	"github.com/morezero/native-bridge/pkg/metrics"
	"github.com/morezero/native-bridge/pkg/protocol"
)

const logPrefix = "invoker:invoker"

// Poster schedules work on the script-owning loop. *eventloop.Loop satisfies it.
type Poster interface {
	Post(task func()) error
}

// Params holds the dependencies of an Invoker. Metrics and Journal are optional.
type Params struct {
	Loop    Poster
	Engine  engine.Engine
	Metrics *metrics.Metrics
	Journal journal.Recorder
}

// Invoker sends calls to the script side. All methods are fire-and-forget and safe to call from
// any goroutine, including the loop itself.
type Invoker struct {
	loop    Poster
	engine  engine.Engine
	metrics *metrics.Metrics
	journal journal.Recorder
}

// New creates an Invoker.
func New(params Params) *Invoker {
	rec := params.Journal
	if rec == nil {
		rec = &journal.NoOpRecorder{}
	}
	return &Invoker{
		loop:    params.Loop,
		engine:  params.Engine,
		metrics: params.Metrics,
		journal: rec,
	}
}

// Call invokes method on the script receiver registered under tag. A nil args is a no-argument
// call; an empty slice passes an empty array. Failures are logged, never returned.
func (i *Invoker) Call(tag, method string, args protocol.Args) {
	i.send(&protocol.CallDescriptor{Tag: tag, Method: method, Args: args})
}

// Reply resolves the script-side callback registered under callbackID with args.
func (i *Invoker) Reply(callbackID int, args protocol.Args) {
	if callbackID == protocol.NoCallback {
		slog.Debug(fmt.Sprintf("%s - Reply without callback id dropped", logPrefix))
		return
	}

	full := make(protocol.Args, 0, len(args)+1)
	full = append(full, protocol.Number(int64(callbackID)))
	full = append(full, args...)
	i.send(&protocol.CallDescriptor{
		Tag:        protocol.SelfTag,
		Method:     protocol.MethodCallback,
		CallbackID: callbackID,
		Args:       full,
	})
}

// Log writes message to the script side's log.
func (i *Invoker) Log(message string) {
	i.Call(protocol.SelfTag, protocol.MethodLog, protocol.Args{message})
}

func (i *Invoker) send(desc *protocol.CallDescriptor) {
	script, err := codec.BuildRaiseEvent(desc)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - Dropping call %s/%s: %v", logPrefix, desc.Tag, desc.Method, err))
		i.record(desc, journal.OutcomeEncodingFailure, err.Error())
		return
	}

	err = i.loop.Post(func() {
		if err := i.engine.Execute(script); err != nil {
			slog.Warn(fmt.Sprintf("%s - Script for %s/%s failed: %v", logPrefix, desc.Tag, desc.Method, err))
			i.record(desc, journal.OutcomeScriptError, err.Error())
			return
		}
		i.record(desc, journal.OutcomeSent, "")
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Dropping call %s/%s: %v", logPrefix, desc.Tag, desc.Method, err))
		i.record(desc, journal.OutcomeDropped, err.Error())
	}
}

func (i *Invoker) record(desc *protocol.CallDescriptor, outcome journal.Outcome, detail string) {
	i.metrics.Outbound(string(outcome))
	entry := journal.NewEntry(protocol.Outbound, desc.Tag, desc.Method, desc.CallbackID, outcome, detail)
	if err := i.journal.Record(context.Background(), entry); err != nil {
		slog.Debug(fmt.Sprintf("%s - Journal rejected entry: %v", logPrefix, err))
	}
}
