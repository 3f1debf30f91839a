// Package engine defines how the bridge hands scripts to the script side.
package engine

// Engine evaluates raiseEvent scripts produced by the outbound invoker. Execute is only ever
// called from the script-owning loop, so implementations need no locking of their own.
type Engine interface {
	Execute(script string) error
}

// NativeCaller is the inbound entry point an in-process engine exposes to scripts.
type NativeCaller interface {
	NativeCall(tag, method string, callbackID int, args string) bool
}

// Binder is implemented by engines that call back into the native side. Bind is called once,
// before the loop starts.
type Binder interface {
	Bind(caller NativeCaller)
}

// Func adapts a function to an Engine.
type Func func(script string) error

// Execute calls f.
func (f Func) Execute(script string) error {
	return f(script)
}
