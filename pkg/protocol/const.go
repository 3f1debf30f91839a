// Package protocol defines the call descriptor, reserved names and error codes shared by both
// directions of the bridge.
package protocol

// Reserved names of the script-side counterpart and of the bridge itself.
const (
	// GlobalObject is the script-side dispatch object that receives outbound calls.
	GlobalObject = "WebViewCommunicator"
	// RaiseEvent is the entry point invoked on GlobalObject for every outbound call.
	RaiseEvent = "raiseEvent"
	// NativeObject is the name under which the native entry point is exposed to scripts.
	NativeObject = "_WebViewCommunicator"
	// CallURLPrefix prefixes call URLs for hosts that intercept navigations instead of exposing NativeObject.
	CallURLPrefix = "js:WebViewCommunicator/"

	// SelfTag is reserved on both sides for messages addressed to the bridge itself.
	SelfTag = "__self"
	// MethodLog writes a message to the receiving side's log.
	MethodLog = "log"
	// MethodCallback resolves a script-side callback registered under a callback id.
	MethodCallback = "callback"
	// MethodHandshake carries the script counterpart's protocol version.
	MethodHandshake = "handshake"

	// NoCallback is the callback id of calls that expect no reply.
	NoCallback = 0
)

// ProtocolVersion is the native side's protocol version, reported during handshakes.
const ProtocolVersion = "1.0.0"
