// Package domain contains the canonical data contracts of the adapter.
package domain

import (
	"errors"
	"fmt"
)

// Component identifies the platform component an error originates from.
type Component string

// ComponentProtocolIEC61850 tags errors raised by this protocol adapter.
const ComponentProtocolIEC61850 Component = "PROTOCOL_IEC61850"

// Reporting errors.
var (
	ErrEmptyDataSet         = errors.New("report has no data-set")
	ErrNoDataSetMembers     = errors.New("report data-set has no members")
	ErrUnsupportedReport    = errors.New("unsupported data-set reference")
	ErrUnsupportedMember    = errors.New("unsupported data-set member")
	ErrHandlerNotRegistered = errors.New("no report handler registered")
)

// Messaging errors.
var (
	ErrMalformedMessage    = errors.New("unable to read message metadata")
	ErrMissingPayload      = errors.New("message has no payload")
	ErrEmptyCorrelationUID = errors.New("correlation uid is empty")
)

// Device errors.
var (
	ErrDeviceNotFound      = errors.New("device not found")
	ErrConnectionNotFound  = errors.New("no connection for device")
	ErrDeviceNotReachable  = errors.New("device not reachable")
	ErrSetPointNotWritable = errors.New("set point is not writable")
)

// CanonicalError is the error family surfaced to the upstream platform in
// NOT_OK responses. Implementations are TechnicalError and FunctionalError;
// AdapterError is deliberately excluded so that internal adapter failures are
// re-classified before leaving the adapter.
type CanonicalError interface {
	error
	Canonical() Component
}

// TechnicalError is a canonical technical failure attributed to a component.
type TechnicalError struct {
	Component Component
	Message   string
	Cause     error
}

func (e *TechnicalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

func (e *TechnicalError) Unwrap() error { return e.Cause }

// Canonical implements CanonicalError.
func (e *TechnicalError) Canonical() Component { return e.Component }

// NewTechnicalError creates a TechnicalError for this adapter's component.
func NewTechnicalError(message string, cause error) *TechnicalError {
	return &TechnicalError{Component: ComponentProtocolIEC61850, Message: message, Cause: cause}
}

// FunctionalError is a canonical failure caused by the request itself rather
// than by the infrastructure, e.g. an unknown device.
type FunctionalError struct {
	Component Component
	Message   string
	Cause     error
}

func (e *FunctionalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

func (e *FunctionalError) Unwrap() error { return e.Cause }

// Canonical implements CanonicalError.
func (e *FunctionalError) Canonical() Component { return e.Component }

// AdapterError is an internal protocol adapter failure. It intentionally does
// not implement CanonicalError: it must be wrapped into a TechnicalError
// before it is surfaced upstream.
type AdapterError struct {
	Message string
	Cause   error
}

func (e *AdapterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AdapterError) Unwrap() error { return e.Cause }

// NewAdapterError creates an AdapterError.
func NewAdapterError(message string, cause error) *AdapterError {
	return &AdapterError{Message: message, Cause: cause}
}
