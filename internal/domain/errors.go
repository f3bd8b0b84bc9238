package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Feed and evaluation errors stay local to the connection or
// tick that produced them; only validation errors reach the alert caller.
var (
	ErrTransport             = errors.New("transport error")
	ErrParse                 = errors.New("malformed feed message")
	ErrStorage               = errors.New("storage error")
	ErrUnsupportedInstrument = errors.New("unsupported instrument")

	ErrInvalidAlert        = errors.New("invalid alert")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrAlertTriggered      = errors.New("alert has already been triggered and cannot be updated")
	ErrConditionAlreadyMet = errors.New("alert condition is already met")
)

// TransportError is a connection-level failure for one instrument's stream.
type TransportError struct {
	Instrument Instrument
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error [%s]: %v", e.Instrument, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ParseError is a single malformed message. The connection stays open.
type ParseError struct {
	Instrument Instrument
	Payload    string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s]: %v", e.Instrument, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// StorageError wraps a failed query or update against the alert store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [%s]: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewParseError truncates the payload so log lines stay bounded.
func NewParseError(inst Instrument, payload []byte, err error) *ParseError {
	const maxPayload = 256
	p := string(payload)
	if len(p) > maxPayload {
		p = p[:maxPayload] + "..."
	}
	return &ParseError{Instrument: inst, Payload: p, Err: err}
}
