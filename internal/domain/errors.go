package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	// ErrUnknownDevice is returned when an operation references an
	// address that was never sighted. Client-input error, no daemon-side
	// state change.
	ErrUnknownDevice = fmt.Errorf("unknown device")
	// ErrStorageUnavailable means the backing store could not be reached
	// for one operation. Transient: the scan loop skips and retries on
	// the next cycle rather than crashing.
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
	// ErrRadioUnavailable means the scan collaborator reported a hard
	// failure (adapter missing, permission denied). Transient: retried
	// with backoff, never fatal.
	ErrRadioUnavailable = fmt.Errorf("radio unavailable")
	// ErrMalformedRequest means a control request could not be decoded.
	ErrMalformedRequest = fmt.Errorf("malformed request")
	// ErrMethodNotFound means a control request named an unsupported method.
	ErrMethodNotFound = fmt.Errorf("method not found")
	// ErrConfig is fatal at startup only (e.g. unwritable data directory).
	ErrConfig = fmt.Errorf("configuration error")
	// ErrRequestTimeout means a control request stalled past its deadline.
	ErrRequestTimeout = fmt.Errorf("request timed out")
	// ErrDaemonUnreachable means the client could not reach the daemon socket.
	ErrDaemonUnreachable = fmt.Errorf("daemon unreachable")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Store.RecordSighting")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category carried on the control
// channel so clients can translate failures without string matching.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeUnknownDevice      ErrorCode = "UNKNOWN_DEVICE"
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	CodeRadioUnavailable   ErrorCode = "RADIO_UNAVAILABLE"
	CodeMalformedRequest   ErrorCode = "MALFORMED_REQUEST"
	CodeMethodNotFound     ErrorCode = "METHOD_NOT_FOUND"
	CodeRequestTimeout     ErrorCode = "REQUEST_TIMEOUT"
)

var errorCodeMap = map[error]ErrorCode{
	ErrUnknownDevice:      CodeUnknownDevice,
	ErrStorageUnavailable: CodeStorageUnavailable,
	ErrRadioUnavailable:   CodeRadioUnavailable,
	ErrMalformedRequest:   CodeMalformedRequest,
	ErrMethodNotFound:     CodeMethodNotFound,
	ErrRequestTimeout:     CodeRequestTimeout,
}

// ErrorCodeOf returns the machine-parseable code for err. It walks the
// error chain with errors.Is and returns CodeUnknown when no sentinel
// matches.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}

// ErrorFromCode maps a wire error code back to its sentinel so callers on
// the client side can use errors.Is. Unrecognized codes return nil.
func ErrorFromCode(code ErrorCode) error {
	for sentinel, c := range errorCodeMap {
		if c == code {
			return sentinel
		}
	}
	return nil
}
