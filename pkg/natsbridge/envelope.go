// Package natsbridge carries bridge traffic over COMMS subjects so that the script host and
// native services can live in other processes.
package natsbridge

import (
	"encoding/json"

	"github.com/morezero/native-bridge/pkg/protocol"
)

// CallRequest is the JSON envelope for an inbound script-to-native call. Args is the encoded
// argument array, exactly as the script side produced it.
type CallRequest = protocol.NativeCallRequest

// CallResponse is the JSON envelope answering a CallRequest.
type CallResponse struct {
	Ok    bool         `json:"ok"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OutboundMessage asks the bridge to call the script side. With Reply set it resolves the script
// callback CallbackID; otherwise it invokes Method on the receiver under Tag. A missing Args is a
// no-argument call.
type OutboundMessage struct {
	Tag        string          `json:"tag,omitempty"`
	Method     string          `json:"method,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Reply      bool            `json:"reply,omitempty"`
	CallbackID int             `json:"callbackId,omitempty"`
}

// RelayMessage is what a RelayReceiver publishes for each inbound call it forwards.
type RelayMessage struct {
	Tag        string        `json:"tag"`
	Method     string        `json:"method"`
	CallbackID int           `json:"callbackId,omitempty"`
	Args       protocol.Args `json:"args"`
}

func errorResponse(code, message string) *CallResponse {
	return &CallResponse{Ok: false, Error: &ErrorDetail{Code: code, Message: message}}
}
