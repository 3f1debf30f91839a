package db

import "time"

// CallRecord represents a row in the bridge_calls table.
type CallRecord struct {
	ID         string    `json:"id"`
	Direction  string    `json:"direction"`
	Tag        string    `json:"tag"`
	Method     string    `json:"method"`
	CallbackID int       `json:"callbackId"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
