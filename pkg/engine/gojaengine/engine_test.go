package gojaengine

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/morezero/native-bridge/pkg/codec"
	"github.com/morezero/native-bridge/pkg/protocol"
)

const engineTestPrefix = "gojaengine:engine_test"

type recordedCall struct {
	Tag        string
	Method     string
	CallbackID int
	Args       string
}

type fakeCaller struct {
	mu     sync.Mutex
	calls  []recordedCall
	result bool
}

func (f *fakeCaller) NativeCall(tag, method string, callbackID int, args string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{tag, method, callbackID, args})
	return f.result
}

func newEngine(t *testing.T, caller *fakeCaller) *Engine {
	t.Helper()
	e, err := New(nil)
	if err != nil {
		t.Fatalf("%s - New: %v", engineTestPrefix, err)
	}
	if caller != nil {
		e.Bind(caller)
	}
	return e
}

func raiseEvent(t *testing.T, tag, method string, args protocol.Args) string {
	t.Helper()
	script, err := codec.BuildRaiseEvent(&protocol.CallDescriptor{Tag: tag, Method: method, Args: args})
	if err != nil {
		t.Fatalf("%s - BuildRaiseEvent: %v", engineTestPrefix, err)
	}
	return script
}

func TestNativeCall_ForwardsArguments(t *testing.T) {
	caller := &fakeCaller{result: true}
	e := newEngine(t, caller)

	got, err := e.Evaluate(`WebViewCommunicator.nativeCall('printer', 'print', 'hello', 2, {k: [true, null]})`)
	if err != nil {
		t.Fatalf("%s - Evaluate: %v", engineTestPrefix, err)
	}
	if got != true {
		t.Errorf("%s - nativeCall returned %v, want true", engineTestPrefix, got)
	}

	if len(caller.calls) != 1 {
		t.Fatalf("%s - %d native calls, want 1", engineTestPrefix, len(caller.calls))
	}
	c := caller.calls[0]
	if c.Tag != "printer" || c.Method != "print" || c.CallbackID != protocol.NoCallback {
		t.Errorf("%s - call = %+v", engineTestPrefix, c)
	}
	args, err := codec.DecodeArgs(c.Args)
	if err != nil {
		t.Fatalf("%s - DecodeArgs(%q): %v", engineTestPrefix, c.Args, err)
	}
	want := protocol.Args{"hello", json.Number("2"), map[string]any{"k": []any{true, nil}}}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("%s - args = %#v, want %#v", engineTestPrefix, args, want)
	}
}

func TestNativeCall_UnknownTagReturnsFalse(t *testing.T) {
	caller := &fakeCaller{result: false}
	e := newEngine(t, caller)

	got, err := e.Evaluate(`WebViewCommunicator.nativeCall('missing', 'x')`)
	if err != nil {
		t.Fatalf("%s - Evaluate: %v", engineTestPrefix, err)
	}
	if got != false {
		t.Errorf("%s - nativeCall returned %v, want false", engineTestPrefix, got)
	}
	if caller.calls[0].Args != "[]" {
		t.Errorf("%s - Args = %q, want []", engineTestPrefix, caller.calls[0].Args)
	}
}

func TestNativeCall_BeforeBind(t *testing.T) {
	e := newEngine(t, nil)
	got, err := e.Evaluate(`WebViewCommunicator.nativeCall('camera', 'takePhoto')`)
	if err != nil {
		t.Fatalf("%s - Evaluate: %v", engineTestPrefix, err)
	}
	if got != false {
		t.Errorf("%s - nativeCall before Bind returned %v, want false", engineTestPrefix, got)
	}
}

func TestNativeCall_CallbackRoundTrip(t *testing.T) {
	caller := &fakeCaller{result: true}
	e := newEngine(t, caller)

	err := e.Execute(`
		var photo = null;
		WebViewCommunicator.nativeCall('camera', 'takePhoto', 'front', function (path, size) {
			photo = { path: path, size: size };
		});
	`)
	if err != nil {
		t.Fatalf("%s - Execute: %v", engineTestPrefix, err)
	}

	c := caller.calls[0]
	if c.CallbackID != 1 {
		t.Fatalf("%s - CallbackID = %d, want 1", engineTestPrefix, c.CallbackID)
	}
	if c.Args != `["front"]` {
		t.Errorf("%s - Args = %q, want [\"front\"]", engineTestPrefix, c.Args)
	}

	reply := raiseEvent(t, protocol.SelfTag, protocol.MethodCallback,
		protocol.Args{protocol.Number(int64(c.CallbackID)), "/tmp/a b'c.jpg", protocol.Number(2048)})
	if err := e.Execute(reply); err != nil {
		t.Fatalf("%s - Execute reply: %v", engineTestPrefix, err)
	}

	got, err := e.Evaluate(`JSON.stringify(photo)`)
	if err != nil {
		t.Fatalf("%s - Evaluate: %v", engineTestPrefix, err)
	}
	if got != `{"path":"/tmp/a b'c.jpg","size":2048}` {
		t.Errorf("%s - photo = %v", engineTestPrefix, got)
	}

	pending, _ := e.Evaluate(`WebViewCommunicator.pendingCallbacks()`)
	if pending != int64(0) {
		t.Errorf("%s - pendingCallbacks = %v, want 0", engineTestPrefix, pending)
	}
}

func TestNativeCall_RejectedCallbackIsReleased(t *testing.T) {
	caller := &fakeCaller{result: false}
	e := newEngine(t, caller)

	got, err := e.Evaluate(`
		WebViewCommunicator.nativeCall('camera', 'takePhoto', function () {});
		WebViewCommunicator.pendingCallbacks();
	`)
	if err != nil {
		t.Fatalf("%s - Evaluate: %v", engineTestPrefix, err)
	}
	if got != int64(0) {
		t.Errorf("%s - pendingCallbacks = %v, want 0", engineTestPrefix, got)
	}
}

func TestRaiseEvent_DeliversArgumentsLosslessly(t *testing.T) {
	e := newEngine(t, &fakeCaller{})

	if err := e.Execute(`
		var received = null;
		WebViewCommunicator.register('ui', {
			show: function () { received = Array.prototype.slice.call(arguments); }
		});
	`); err != nil {
		t.Fatalf("%s - Execute: %v", engineTestPrefix, err)
	}

	args := protocol.Args{`it's "quoted", (parens) \ back`, "日本語 é", json.Number("-1.5"), nil, []any{false}}
	if err := e.Execute(raiseEvent(t, "ui", "show", args)); err != nil {
		t.Fatalf("%s - Execute raiseEvent: %v", engineTestPrefix, err)
	}

	got, err := e.Evaluate(`JSON.stringify(received)`)
	if err != nil {
		t.Fatalf("%s - Evaluate: %v", engineTestPrefix, err)
	}
	roundTrip, err := codec.DecodeArgs(got.(string))
	if err != nil {
		t.Fatalf("%s - DecodeArgs: %v", engineTestPrefix, err)
	}
	if !reflect.DeepEqual(roundTrip, args) {
		t.Errorf("%s - received %#v, want %#v", engineTestPrefix, roundTrip, args)
	}
}

func TestRaiseEvent_NoArguments(t *testing.T) {
	e := newEngine(t, &fakeCaller{})

	if err := e.Execute(`
		var count = -1;
		WebViewCommunicator.register('ui', {
			refresh: function () { count = arguments.length; }
		});
	`); err != nil {
		t.Fatalf("%s - Execute: %v", engineTestPrefix, err)
	}
	script := raiseEvent(t, "ui", "refresh", nil)
	if !strings.HasSuffix(script, ",null)") {
		t.Fatalf("%s - script %q should pass null", engineTestPrefix, script)
	}
	if err := e.Execute(script); err != nil {
		t.Fatalf("%s - Execute: %v", engineTestPrefix, err)
	}
	if got, _ := e.Evaluate(`count`); got != int64(0) {
		t.Errorf("%s - arguments.length = %v, want 0", engineTestPrefix, got)
	}
}

func TestRaiseEvent_UnknownTagOrMethod(t *testing.T) {
	e := newEngine(t, &fakeCaller{})
	if err := e.Execute(`WebViewCommunicator.register('ui', {})`); err != nil {
		t.Fatalf("%s - Execute: %v", engineTestPrefix, err)
	}

	for _, script := range []string{
		raiseEvent(t, "missing", "show", protocol.Args{}),
		raiseEvent(t, "ui", "missing", protocol.Args{}),
	} {
		got, err := e.Evaluate(script)
		if err != nil {
			t.Errorf("%s - Evaluate(%q): %v", engineTestPrefix, script, err)
		}
		if got != false {
			t.Errorf("%s - Evaluate(%q) = %v, want false", engineTestPrefix, script, got)
		}
	}
}

func TestRegister_DuplicateTagThrows(t *testing.T) {
	e := newEngine(t, &fakeCaller{})

	err := e.Execute(`WebViewCommunicator.register('__self', {})`)
	if err == nil {
		t.Fatalf("%s - registering __self should throw", engineTestPrefix)
	}
	if !strings.Contains(err.Error(), "DuplicateTag") {
		t.Errorf("%s - err = %v, want DuplicateTag", engineTestPrefix, err)
	}

	got, err := e.Evaluate(`WebViewCommunicator.register('ui', {}); WebViewCommunicator.unregister('ui')`)
	if err != nil || got != true {
		t.Errorf("%s - unregister = %v, %v", engineTestPrefix, got, err)
	}
}

func TestSelfLog(t *testing.T) {
	e := newEngine(t, &fakeCaller{})
	script := raiseEvent(t, protocol.SelfTag, protocol.MethodLog,
		protocol.Args{"Error: No object with tag 'x' registered on application"})
	if err := e.Execute(script); err != nil {
		t.Errorf("%s - Execute __self.log: %v", engineTestPrefix, err)
	}
}

func TestExecute_Timeout(t *testing.T) {
	e, err := New(&Options{Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("%s - New: %v", engineTestPrefix, err)
	}

	err = e.Execute(`for (;;) {}`)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("%s - Execute = %v, want ErrTimeout", engineTestPrefix, err)
	}

	if got, err := e.Evaluate(`1 + 1`); err != nil || got != int64(2) {
		t.Errorf("%s - runtime unusable after timeout: %v, %v", engineTestPrefix, got, err)
	}
}

func TestExecute_SyntaxError(t *testing.T) {
	e := newEngine(t, nil)
	if err := e.Execute(`WebViewCommunicator.raiseEvent(`); err == nil {
		t.Errorf("%s - expected syntax error", engineTestPrefix)
	}
}
