package commsutil

import (
	"encoding/json"
	"errors"
	"fmt"
)

const codecLogPrefix = "commsutil:codec"

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s - encode: %w", codecLogPrefix, err)
	}
	return data, nil
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v interface{}) error {
	if len(data) == 0 {
		return errors.New(codecLogPrefix + " - empty payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s - decode: %w", codecLogPrefix, err)
	}
	return nil
}
