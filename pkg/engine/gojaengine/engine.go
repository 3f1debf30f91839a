// Package gojaengine runs the script side of the bridge in-process on goja.
//
// The runtime is not safe for concurrent use. Every method except New and Bind must be called
// from the bridge's script-owning loop.
package gojaengine

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/morezero/native-bridge/pkg/engine"
	"github.com/morezero/native-bridge/pkg/protocol"
)

const (
	logPrefix        = "gojaengine:engine"
	consoleLogPrefix = "gojaengine:console"
)

//go:embed counterpart.js
var counterpartJS string

// ErrTimeout is returned when a script runs longer than Options.Timeout.
var ErrTimeout = errors.New("script timed out")

// Options configures an Engine. Zero values disable the limit.
type Options struct {
	// Timeout interrupts a single Execute call that runs longer than this.
	Timeout time.Duration
}

// Engine is a goja runtime with the bridge counterpart loaded.
type Engine struct {
	vm      *goja.Runtime
	caller  engine.NativeCaller
	timeout time.Duration
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Binder = (*Engine)(nil)
)

// New creates a runtime, installs the native object and console, and boots the counterpart script.
func New(opts *Options) (*Engine, error) {
	e := &Engine{vm: goja.New()}
	if opts != nil {
		e.timeout = opts.Timeout
	}

	if err := e.installConsole(); err != nil {
		return nil, err
	}
	if err := e.installNative(); err != nil {
		return nil, err
	}
	if _, err := e.vm.RunScript("counterpart.js", counterpartJS); err != nil {
		return nil, fmt.Errorf("%s - failed to boot counterpart: %w", logPrefix, err)
	}

	slog.Debug(fmt.Sprintf("%s - Runtime ready", logPrefix))
	return e, nil
}

// Bind sets the native entry point scripts call through _WebViewCommunicator.nativeCall.
func (e *Engine) Bind(caller engine.NativeCaller) {
	e.caller = caller
}

// Execute runs script.
func (e *Engine) Execute(script string) error {
	_, err := e.run(script)
	return err
}

// Evaluate runs script and returns its completion value exported to Go.
func (e *Engine) Evaluate(script string) (any, error) {
	v, err := e.run(script)
	if err != nil {
		return nil, err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

func (e *Engine) run(script string) (goja.Value, error) {
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() { e.vm.Interrupt(ErrTimeout) })
		defer func() {
			timer.Stop()
			e.vm.ClearInterrupt()
		}()
	}

	v, err := e.vm.RunString(script)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("%s - %w after %s", logPrefix, ErrTimeout, e.timeout)
		}
		return nil, fmt.Errorf("%s - script failed: %w", logPrefix, err)
	}
	return v, nil
}

func (e *Engine) installNative() error {
	native := e.vm.NewObject()
	err := native.Set("nativeCall", func(call goja.FunctionCall) goja.Value {
		tag := call.Argument(0).String()
		method := call.Argument(1).String()
		callbackID := protocol.NoCallback
		if id := call.Argument(2); !goja.IsUndefined(id) && !goja.IsNull(id) {
			callbackID = int(id.ToInteger())
		}
		args := "[]"
		if a := call.Argument(3); !goja.IsUndefined(a) && !goja.IsNull(a) {
			args = a.String()
		}

		if e.caller == nil {
			slog.Warn(fmt.Sprintf("%s - nativeCall %s/%s before Bind", logPrefix, tag, method))
			return e.vm.ToValue(false)
		}
		return e.vm.ToValue(e.caller.NativeCall(tag, method, callbackID, args))
	})
	if err != nil {
		return fmt.Errorf("%s - failed to install native object: %w", logPrefix, err)
	}
	if err := e.vm.Set(protocol.NativeObject, native); err != nil {
		return fmt.Errorf("%s - failed to install native object: %w", logPrefix, err)
	}
	return nil
}

func (e *Engine) installConsole() error {
	console := e.vm.NewObject()
	levels := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, level := range levels {
		level := level
		err := console.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			slog.Log(context.Background(), level, fmt.Sprintf("%s - %s", consoleLogPrefix, strings.Join(parts, " ")))
			return goja.Undefined()
		})
		if err != nil {
			return fmt.Errorf("%s - failed to install console.%s: %w", logPrefix, name, err)
		}
	}
	if err := e.vm.Set("console", console); err != nil {
		return fmt.Errorf("%s - failed to install console: %w", logPrefix, err)
	}
	return nil
}
