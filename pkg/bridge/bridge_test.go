package bridge

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/morezero/native-bridge/pkg/engine"
	"github.com/morezero/native-bridge/pkg/engine/gojaengine"
	"github.com/morezero/native-bridge/pkg/metrics"
	"github.com/morezero/native-bridge/pkg/protocol"
	"github.com/morezero/native-bridge/pkg/registry"
)

const bridgeTestPrefix = "bridge:bridge_test"

type scriptLog struct {
	mu      sync.Mutex
	scripts []string
}

func (s *scriptLog) engine() engine.Engine {
	return engine.Func(func(script string) error {
		s.mu.Lock()
		s.scripts = append(s.scripts, script)
		s.mu.Unlock()
		return nil
	})
}

func (s *scriptLog) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scripts...)
}

func startBridge(t *testing.T, params Params) *Bridge {
	t.Helper()
	b, err := New(params)
	if err != nil {
		t.Fatalf("%s - New: %v", bridgeTestPrefix, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := b.Start(ctx); err != nil {
		t.Fatalf("%s - Start: %v", bridgeTestPrefix, err)
	}
	t.Cleanup(func() {
		closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = b.Close(closeCtx)
		cancel()
	})
	return b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("%s - timed out waiting for %s", bridgeTestPrefix, what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Params{}); err == nil {
		t.Errorf("%s - New without engine should fail", bridgeTestPrefix)
	}
	if _, err := New(Params{Engine: (&scriptLog{}).engine(), VersionConstraint: "not a constraint"}); err == nil {
		t.Errorf("%s - New with invalid constraint should fail", bridgeTestPrefix)
	}
}

func TestSelfTagReserved(t *testing.T) {
	b, err := New(Params{Engine: (&scriptLog{}).engine(), Metrics: metrics.New()})
	if err != nil {
		t.Fatalf("%s - New: %v", bridgeTestPrefix, err)
	}

	if b.Register(protocol.SelfTag, registry.ReceiverFunc(func(context.Context, string, int, protocol.Args) {})) {
		t.Errorf("%s - registering __self should fail", bridgeTestPrefix)
	}
	if b.Unregister(protocol.SelfTag) {
		t.Errorf("%s - unregistering __self should fail", bridgeTestPrefix)
	}
	if got := b.Receivers(); !reflect.DeepEqual(got, []string{protocol.SelfTag}) {
		t.Errorf("%s - Receivers() = %v", bridgeTestPrefix, got)
	}
}

func TestStart_Twice(t *testing.T) {
	b := startBridge(t, Params{Engine: (&scriptLog{}).engine()})
	if err := b.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("%s - second Start = %v, want ErrAlreadyStarted", bridgeTestPrefix, err)
	}
	if !b.Running() {
		t.Errorf("%s - Running() = false after Start", bridgeTestPrefix)
	}
}

func TestNativeCall_UnknownTagSendsOneDiagnostic(t *testing.T) {
	log := &scriptLog{}
	b := startBridge(t, Params{Engine: log.engine()})

	if b.NativeCall("printer", "print", 1, `["hello"]`) {
		t.Fatalf("%s - NativeCall(unknown) = true", bridgeTestPrefix)
	}
	if err := b.loop.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("%s - loop sync: %v", bridgeTestPrefix, err)
	}

	want := []string{
		`WebViewCommunicator.raiseEvent('__self','log','%5B%22Error%3A%20No%20object%20with%20tag%20%27printer%27%20registered%20on%20application%22%5D')`,
	}
	if got := log.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("%s - scripts = %v, want %v", bridgeTestPrefix, got, want)
	}
}

func TestHandshake(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		wantScript string
		compatible bool
	}{
		{"compatible", "1.4.2", `WebViewCommunicator.raiseEvent('__self','callback','%5B3%2Ctrue%2C%221.0.0%22%5D')`, true},
		{"major mismatch", "2.0.0", `WebViewCommunicator.raiseEvent('__self','callback','%5B3%2Cfalse%2C%221.0.0%22%5D')`, false},
		{"garbage", "banana", `WebViewCommunicator.raiseEvent('__self','callback','%5B3%2Cfalse%2C%221.0.0%22%5D')`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &scriptLog{}
			b := startBridge(t, Params{Engine: log.engine()})

			if !b.NativeCall(protocol.SelfTag, protocol.MethodHandshake, 3, `["`+tt.version+`"]`) {
				t.Fatalf("%s - handshake not dispatched", bridgeTestPrefix)
			}
			waitFor(t, "handshake reply", func() bool { return len(log.snapshot()) == 1 })

			if got := log.snapshot()[0]; got != tt.wantScript {
				t.Errorf("%s - reply = %s, want %s", bridgeTestPrefix, got, tt.wantScript)
			}
			peer := b.Peer()
			if peer == nil || peer.Version != tt.version || peer.Compatible != tt.compatible {
				t.Errorf("%s - Peer() = %+v", bridgeTestPrefix, peer)
			}
		})
	}
}

func TestHandshake_CustomConstraint(t *testing.T) {
	log := &scriptLog{}
	b := startBridge(t, Params{Engine: log.engine(), VersionConstraint: ">=2.0.0"})

	b.NativeCall(protocol.SelfTag, protocol.MethodHandshake, protocol.NoCallback, `["2.1.0"]`)
	waitFor(t, "peer", func() bool { return b.Peer() != nil })

	if !b.Peer().Compatible {
		t.Errorf("%s - 2.1.0 should satisfy >=2.0.0", bridgeTestPrefix)
	}
	if err := b.loop.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("%s - loop sync: %v", bridgeTestPrefix, err)
	}
	if got := log.snapshot(); len(got) != 0 {
		t.Errorf("%s - handshake without callback must not reply: %v", bridgeTestPrefix, got)
	}
}

func TestSelfLogAndUnknownMethod(t *testing.T) {
	log := &scriptLog{}
	b := startBridge(t, Params{Engine: log.engine()})

	if !b.NativeCall(protocol.SelfTag, protocol.MethodLog, 0, `["hello", 1, {"a": true}]`) {
		t.Errorf("%s - __self.log not dispatched", bridgeTestPrefix)
	}
	if !b.NativeCall(protocol.SelfTag, "explode", 0, `[]`) {
		t.Errorf("%s - unknown __self method should still dispatch", bridgeTestPrefix)
	}
}

func TestClose_RejectsLateCalls(t *testing.T) {
	b, err := New(Params{Engine: (&scriptLog{}).engine()})
	if err != nil {
		t.Fatalf("%s - New: %v", bridgeTestPrefix, err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("%s - Start: %v", bridgeTestPrefix, err)
	}
	b.Register("camera", registry.ReceiverFunc(func(context.Context, string, int, protocol.Args) {}))

	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("%s - Close: %v", bridgeTestPrefix, err)
	}
	if b.NativeCall("camera", "takePhoto", 7, "[]") {
		t.Errorf("%s - NativeCall after Close = true, want false", bridgeTestPrefix)
	}
	if b.Running() {
		t.Errorf("%s - Running() = true after Close", bridgeTestPrefix)
	}
	b.CallJS("ui", "show", nil)
}

func TestClose_WithoutStart(t *testing.T) {
	b, err := New(Params{Engine: (&scriptLog{}).engine()})
	if err != nil {
		t.Fatalf("%s - New: %v", bridgeTestPrefix, err)
	}
	if err := b.Close(context.Background()); err != nil {
		t.Errorf("%s - Close without Start: %v", bridgeTestPrefix, err)
	}
}

func TestEndToEnd_Goja(t *testing.T) {
	eng, err := gojaengine.New(nil)
	if err != nil {
		t.Fatalf("%s - gojaengine.New: %v", bridgeTestPrefix, err)
	}
	b := startBridge(t, Params{Engine: eng})

	b.Register("camera", registry.ReceiverFunc(func(_ context.Context, method string, callbackID int, args protocol.Args) {
		side, _ := args[0].(string)
		b.Reply(callbackID, protocol.Args{"/photos/" + side + ".jpg"})
	}))

	err = b.RunScript(context.Background(), `
		var photo = null;
		var shown = [];
		var handshake = null;
		WebViewCommunicator.register('ui', {
			show: function (title, count) { shown.push(title + ':' + count); }
		});
		WebViewCommunicator.nativeCall('camera', 'takePhoto', 'front', function (path) { photo = path; });
		WebViewCommunicator.nativeCall('__self', 'handshake', '1.0.0', function (ok, version) {
			handshake = ok + '/' + version;
		});
	`)
	if err != nil {
		t.Fatalf("%s - RunScript: %v", bridgeTestPrefix, err)
	}

	b.CallJS("ui", "show", protocol.Args{"it's done", protocol.Number(3)})

	evaluate := func(expr string) any {
		var v any
		var evalErr error
		if err := b.loop.Do(context.Background(), func() { v, evalErr = eng.Evaluate(expr) }); err != nil {
			t.Fatalf("%s - loop.Do: %v", bridgeTestPrefix, err)
		}
		if evalErr != nil {
			t.Fatalf("%s - Evaluate(%s): %v", bridgeTestPrefix, expr, evalErr)
		}
		return v
	}

	waitFor(t, "camera reply", func() bool { return evaluate(`photo`) != nil })
	if got := evaluate(`photo`); got != "/photos/front.jpg" {
		t.Errorf("%s - photo = %v", bridgeTestPrefix, got)
	}
	waitFor(t, "handshake reply", func() bool { return evaluate(`handshake`) != nil })
	if got := evaluate(`handshake`); got != "true/1.0.0" {
		t.Errorf("%s - handshake = %v", bridgeTestPrefix, got)
	}
	if got := evaluate(`shown.join(',')`); got != "it's done:3" {
		t.Errorf("%s - shown = %v", bridgeTestPrefix, got)
	}
	if got := evaluate(`WebViewCommunicator.nativeCall('printer', 'print', 'hello')`); got != false {
		t.Errorf("%s - nativeCall(unknown) = %v, want false", bridgeTestPrefix, got)
	}
}
