// Package codec converts call arguments to and from their JSON text form and builds the
// escaped call expressions and call URLs that carry them across the script boundary.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/morezero/native-bridge/pkg/protocol"
)

// Encode serializes a JSON-compatible value to text.
func Encode(v any) (string, error) {
	if err := checkStrings(v); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", protocol.NewError(protocol.CodeEncodingFailure, "value is not JSON-encodable", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode parses exactly one JSON value. Numbers decode as json.Number so they survive a
// second round trip unchanged.
func Decode(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, protocol.NewError(protocol.CodeMalformedPayload, "invalid JSON", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, protocol.NewError(protocol.CodeMalformedPayload, "trailing data after JSON value", nil)
	}
	return v, nil
}

// EncodeArgs serializes an argument list. A nil list encodes as an empty array.
func EncodeArgs(args protocol.Args) (string, error) {
	if args == nil {
		return "[]", nil
	}
	return Encode([]any(args))
}

// DecodeArgs parses the JSON text of an argument list, which must be an array.
func DecodeArgs(text string) (protocol.Args, error) {
	v, err := Decode(text)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, protocol.NewError(protocol.CodeMalformedPayload,
			fmt.Sprintf("arguments must be a JSON array, got %T", v), nil)
	}
	return protocol.Args(arr), nil
}

// checkStrings rejects strings that are not valid UTF-8; encoding/json would silently
// replace their bytes, which breaks the round trip.
func checkStrings(v any) error {
	switch t := v.(type) {
	case string:
		if !utf8.ValidString(t) {
			return errInvalidUTF8
		}
	case []any:
		for _, e := range t {
			if err := checkStrings(e); err != nil {
				return err
			}
		}
	case protocol.Args:
		return checkStrings([]any(t))
	case map[string]any:
		for k, e := range t {
			if err := checkStrings(k); err != nil {
				return err
			}
			if err := checkStrings(e); err != nil {
				return err
			}
		}
	default:
		return checkValue(reflect.ValueOf(v), map[uintptr]bool{})
	}
	return nil
}

var errInvalidUTF8 = protocol.NewError(protocol.CodeEncodingFailure, "string is not valid UTF-8", nil)

// checkValue covers typed containers such as []string, map[string]string and structs.
// Byte slices are skipped since encoding/json writes them as base64.
func checkValue(rv reflect.Value, seen map[uintptr]bool) error {
	switch rv.Kind() {
	case reflect.String:
		if !utf8.ValidString(rv.String()) {
			return errInvalidUTF8
		}
	case reflect.Pointer:
		if rv.IsNil() || seen[rv.Pointer()] {
			return nil
		}
		seen[rv.Pointer()] = true
		return checkValue(rv.Elem(), seen)
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return checkValue(rv.Elem(), seen)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		fallthrough
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := checkValue(rv.Index(i), seen); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if err := checkValue(iter.Key(), seen); err != nil {
				return err
			}
			if err := checkValue(iter.Value(), seen); err != nil {
				return err
			}
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := checkValue(rv.Field(i), seen); err != nil {
				return err
			}
		}
	}
	return nil
}
