package protocol

import "errors"

// Error codes. None of them is fatal to the bridge.
const (
	CodeDuplicateTag     = "DUPLICATE_TAG"
	CodeUnknownTag       = "UNKNOWN_TAG"
	CodeMalformedPayload = "MALFORMED_PAYLOAD"
	CodeEncodingFailure  = "ENCODING_FAILURE"
	CodeRejected         = "REJECTED"
	CodeInvalidURL       = "INVALID_URL"
)

// Error is a structured bridge error.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// IsCode reports whether err is, or wraps, an *Error with the given code.
func IsCode(err error, code string) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
