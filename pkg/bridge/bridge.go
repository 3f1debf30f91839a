// Package bridge wires the registry, dispatcher, invoker, owning loop and worker pool into one
// bidirectional native/script bridge. Each Bridge is independent; there is no package state.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/morezero/native-bridge/pkg/dispatcher"
	"github.com/morezero/native-bridge/pkg/engine"
	"github.com/morezero/native-bridge/pkg/eventloop"
	"github.com/morezero/native-bridge/pkg/invoker"
	"github.com/morezero/native-bridge/pkg/journal"
	"github.com/morezero/native-bridge/pkg/metrics"
	"github.com/morezero/native-bridge/pkg/protocol"
	"github.com/morezero/native-bridge/pkg/registry"
	"github.com/morezero/native-bridge/pkg/semver"
	"github.com/morezero/native-bridge/pkg/worker"
)

const logPrefix = "bridge:bridge"

// DefaultVersionConstraint accepts any 1.x script counterpart.
const DefaultVersionConstraint = "^1.0.0"

// ErrAlreadyStarted is returned by Start when the loop is already running.
var ErrAlreadyStarted = errors.New("bridge already started")

// Params configures a Bridge. Engine is required; everything else has a default.
type Params struct {
	Engine engine.Engine
	// MaxWorkers bounds concurrently running receivers; 0 is unbounded.
	MaxWorkers int
	// VersionConstraint is checked against the counterpart's handshake version.
	VersionConstraint string
	Metrics           *metrics.Metrics
	Journal           journal.Recorder
}

// Peer describes the script counterpart as reported by its last handshake.
type Peer struct {
	Version    string
	Compatible bool
}

// Bridge is one native/script bridge instance.
type Bridge struct {
	registry   *registry.Registry
	loop       *eventloop.Loop
	pool       *worker.Pool
	invoker    *invoker.Invoker
	dispatcher *dispatcher.Dispatcher
	engine     engine.Engine

	startOnce sync.Once
	started   atomic.Bool
	peer      atomic.Pointer[Peer]
}

// New creates a Bridge and registers the built-in __self receiver. The loop does not run until Start.
func New(params Params) (*Bridge, error) {
	if params.Engine == nil {
		return nil, fmt.Errorf("%s - engine is required", logPrefix)
	}

	constraintText := params.VersionConstraint
	if constraintText == "" {
		constraintText = DefaultVersionConstraint
	}
	versions, err := semver.ParseRange(constraintText)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid version constraint: %w", logPrefix, err)
	}

	b := &Bridge{
		registry: registry.NewRegistry(),
		loop:     eventloop.New(),
		pool:     worker.NewPool(params.MaxWorkers),
		engine:   params.Engine,
	}
	b.invoker = invoker.New(invoker.Params{
		Loop:    b.loop,
		Engine:  params.Engine,
		Metrics: params.Metrics,
		Journal: params.Journal,
	})
	b.dispatcher = dispatcher.NewDispatcher(dispatcher.Params{
		Registry: b.registry,
		Pool:     b.pool,
		Script:   b.invoker,
		Metrics:  params.Metrics,
		Journal:  params.Journal,
	})

	b.registry.Register(protocol.SelfTag, &selfReceiver{bridge: b, versions: versions})

	if binder, ok := params.Engine.(engine.Binder); ok {
		binder.Bind(b)
	}
	params.Metrics.TrackGauges(b.loop.Len, b.registry.Len)

	slog.Info(fmt.Sprintf("%s - Bridge created (maxWorkers=%d, versionConstraint=%s)", logPrefix, params.MaxWorkers, constraintText))
	return b, nil
}

// Start runs the owning loop on its own goroutine until ctx is done or Close is called.
func (b *Bridge) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	b.startOnce.Do(func() {
		err = nil
		b.started.Store(true)
		go func() {
			if runErr := b.loop.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				slog.Warn(fmt.Sprintf("%s - Loop stopped: %v", logPrefix, runErr))
			}
		}()
	})
	return err
}

// Register exposes receiver to scripts under tag. It returns false if tag is taken.
func (b *Bridge) Register(tag string, receiver registry.Receiver) bool {
	return b.registry.Register(tag, receiver)
}

// Unregister removes the receiver under tag. The built-in __self receiver cannot be removed.
func (b *Bridge) Unregister(tag string) bool {
	if tag == protocol.SelfTag {
		slog.Warn(fmt.Sprintf("%s - Refusing to unregister %s", logPrefix, protocol.SelfTag))
		return false
	}
	return b.registry.Unregister(tag)
}

// NativeCall is the inbound entry point for the script side.
func (b *Bridge) NativeCall(tag, method string, callbackID int, args string) bool {
	return b.dispatcher.NativeCall(tag, method, callbackID, args)
}

// HandleURL is the inbound entry point for hosts that deliver calls as navigations.
func (b *Bridge) HandleURL(raw string) bool {
	return b.dispatcher.HandleURL(raw)
}

// CallJS invokes method on the script receiver under tag. nil args sends no arguments.
func (b *Bridge) CallJS(tag, method string, args protocol.Args) {
	b.invoker.Call(tag, method, args)
}

// Reply resolves a script callback with args.
func (b *Bridge) Reply(callbackID int, args protocol.Args) {
	b.invoker.Reply(callbackID, args)
}

// RunScript executes script on the owning loop and waits for it.
func (b *Bridge) RunScript(ctx context.Context, script string) error {
	var execErr error
	if err := b.loop.Do(ctx, func() { execErr = b.engine.Execute(script) }); err != nil {
		return fmt.Errorf("%s - run script: %w", logPrefix, err)
	}
	return execErr
}

// Receivers returns the registered tags, including __self.
func (b *Bridge) Receivers() []string {
	return b.registry.Tags()
}

// QueueDepth returns the number of tasks waiting on the owning loop.
func (b *Bridge) QueueDepth() int {
	return b.loop.Len()
}

// ActiveReceivers returns the number of receivers currently running.
func (b *Bridge) ActiveReceivers() int {
	return b.pool.Active()
}

// Peer returns the counterpart reported by the last handshake, or nil.
func (b *Bridge) Peer() *Peer {
	return b.peer.Load()
}

// Running reports whether the owning loop is running.
func (b *Bridge) Running() bool {
	if !b.started.Load() {
		return false
	}
	select {
	case <-b.loop.Done():
		return false
	default:
		return true
	}
}

// Close stops accepting calls, waits for running receivers and drains the owning loop.
func (b *Bridge) Close(ctx context.Context) error {
	slog.Info(fmt.Sprintf("%s - Closing bridge", logPrefix))

	poolErr := b.pool.Close(ctx)
	b.loop.Close()

	if b.started.Load() {
		select {
		case <-b.loop.Done():
		case <-ctx.Done():
			return errors.Join(poolErr, fmt.Errorf("%s - loop did not drain: %w", logPrefix, ctx.Err()))
		}
	}
	return poolErr
}
