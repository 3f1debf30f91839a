package protocol

import (
	"encoding/json"
	"strconv"
)

// Args is an ordered list of JSON values. Elements are limited to nil, bool, json.Number,
// string, []any and map[string]any.
type Args []any

// CallDescriptor describes one call in either direction.
type CallDescriptor struct {
	Tag    string
	Method string
	// CallbackID is set on inbound calls only; NoCallback otherwise.
	CallbackID int
	// Args is nil for a no-argument outbound call.
	Args Args
}

// HasCallback reports whether the caller expects a reply.
func (d *CallDescriptor) HasCallback() bool {
	return d.CallbackID != NoCallback
}

// Direction of a call relative to the native side.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Number returns a json.Number for an int, for building argument lists on the native side.
func Number(n int64) json.Number {
	return json.Number(strconv.FormatInt(n, 10))
}

// NativeCallRequest is the raw form of an inbound call as it crosses a transport: the
// arguments are still JSON text.
type NativeCallRequest struct {
	Tag        string `json:"tag"`
	Method     string `json:"method"`
	CallbackID int    `json:"callbackId"`
	Args       string `json:"args"`
}
