package tcp

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnknownMessage = errors.New("unknown message type")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

// wireError pairs a sentinel kind with the exact text sent to the client.
type wireError struct {
	kind error
	msg  string
}

func (e *wireError) Error() string { return e.msg }
func (e *wireError) Unwrap() error { return e.kind }

func validationErrorf(format string, args ...any) error {
	return &wireError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func unknownMessageError(code uint32) error {
	return &wireError{kind: ErrUnknownMessage, msg: fmt.Sprintf("Unknown message type: %d", code)}
}

var errRateLimited = &wireError{kind: ErrRateLimited, msg: "Rate limit exceeded"}

// fields is a loosely parsed JSON object. Handlers pull typed values out of
// it so a missing key and a wrongly typed key produce different messages.
type fields map[string]json.RawMessage

func parseFields(payload []byte) (fields, error) {
	f := fields{}
	if len(payload) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, validationErrorf("Invalid JSON payload: %v", err)
	}
	return f, nil
}

// raw returns the value for name, treating JSON null as absent.
func (f fields) raw(name string) (json.RawMessage, bool) {
	v, ok := f[name]
	if !ok || string(v) == "null" {
		return nil, false
	}
	return v, true
}

func (f fields) optionalString(name string) (string, error) {
	v, ok := f.raw(name)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", validationErrorf("Invalid field %s: expected string", name)
	}
	return s, nil
}

func (f fields) requiredString(name string) (string, error) {
	s, err := f.optionalString(name)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", validationErrorf("Missing required field: %s", name)
	}
	return s, nil
}

func (f fields) requiredNumber(name string) (float64, error) {
	v, ok := f.raw(name)
	if !ok {
		return 0, validationErrorf("Missing required field: %s", name)
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, validationErrorf("Invalid field %s: expected number", name)
	}
	return n, nil
}

func (f fields) optionalBool(name string) (bool, error) {
	v, ok := f.raw(name)
	if !ok {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		return false, validationErrorf("Invalid field %s: expected boolean", name)
	}
	return b, nil
}
