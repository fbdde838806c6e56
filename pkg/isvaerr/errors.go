// Package isvaerr defines the error taxonomy shared by every isvactl component.
package isvaerr

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies the class of an error surfaced to the invocation boundary.
type Kind string

const (
	// KindTransport is a network or authentication failure.
	KindTransport Kind = "transport"
	// KindAppStatus is a read answered with an unexpected status code.
	KindAppStatus Kind = "app_status"
	// KindWriteRejected is a write answered with an unexpected status code.
	KindWriteRejected Kind = "write_rejected"
	// KindMapping is a malformed or unexpected wire shape.
	KindMapping Kind = "mapping"
	// KindValidation is a caller error detected before any network call.
	KindValidation Kind = "validation"
	// KindIntegrity is a checksum mismatch on a transferred file.
	KindIntegrity Kind = "integrity"
)

// Error carries a Kind plus, for appliance errors, the status code and body.
type Error struct {
	Kind Kind
	Code int
	Body any
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s: appliance returned error %d with message %s", msg, e.Code, bodyString(e.Body))
	}
	return msg
}

// Unwrap gives errors.Is/As access to the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func bodyString(body any) string {
	switch b := body.(type) {
	case nil:
		return "{}"
	case string:
		return b
	case []byte:
		return string(b)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf("%v", body)
	}
	return string(data)
}

// Transport wraps a network or authentication failure. code is zero when the
// appliance never answered.
func Transport(code int, body any, err error) error {
	return &Error{Kind: KindTransport, Code: code, Body: body, Err: err}
}

// AppStatus reports a read that did not return the documented success code.
func AppStatus(code int, body any) error {
	return &Error{Kind: KindAppStatus, Code: code, Body: body}
}

// WriteRejected reports a write that did not return the documented success code.
func WriteRejected(method, path string, code int, body any) error {
	return &Error{
		Kind: KindWriteRejected,
		Code: code,
		Body: body,
		Err:  fmt.Errorf("%s %s was not accepted", method, path),
	}
}

// Mapping reports a wire payload that cannot be mapped.
func Mapping(format string, args ...any) error {
	return &Error{Kind: KindMapping, Err: fmt.Errorf(format, args...)}
}

// Validation reports a caller error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

// ValidationErr tags an existing error (typically a *multierror.Error) as a
// validation failure.
func ValidationErr(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindValidation, Err: err}
}

// Integrity reports a checksum mismatch.
func Integrity(format string, args ...any) error {
	return &Error{Kind: KindIntegrity, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// CodeOf returns the appliance status code carried by err, or zero.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
