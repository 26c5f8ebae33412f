// Package domain contains the canonical data contracts of the adapter.
package domain

import (
	"errors"
	"fmt"
)

// ResultType is the outcome of a command surfaced to the upstream platform.
type ResultType string

const (
	ResultOK    ResultType = "OK"
	ResultNotOK ResultType = "NOT_OK"
)

// MessageMetadata is the metadata surface of an inbound command message.
// It is read once per processing attempt and never mutated.
type MessageMetadata struct {
	CorrelationUID string
	Domain         string
	DomainVersion  string
	MessageType    string
	OrganisationID string
	DeviceID       string
	IPAddress      string
	Scheduled      bool
	RetryCount     int
}

// ResponseMessage is the outbound response to a command message. Instances
// are built through ResponseMessageBuilder so that a half-formed response can
// never be sent.
type ResponseMessage struct {
	CorrelationUID string
	Domain         string
	DomainVersion  string
	MessageType    string
	OrganisationID string
	DeviceID       string
	Result         ResultType
	Error          CanonicalError
	RetryCount     int
	Payload        any
	Scheduled      bool
}

// ResponseMessageBuilder accumulates response fields and validates them on
// Build.
type ResponseMessageBuilder struct {
	msg ResponseMessage
}

// NewResponseMessageBuilder creates a builder pre-filled from the metadata of
// the command message being answered, so that correlation uid, domain,
// domain version and device identification are always echoed.
func NewResponseMessageBuilder(meta MessageMetadata) *ResponseMessageBuilder {
	return &ResponseMessageBuilder{msg: ResponseMessage{
		CorrelationUID: meta.CorrelationUID,
		Domain:         meta.Domain,
		DomainVersion:  meta.DomainVersion,
		MessageType:    meta.MessageType,
		OrganisationID: meta.OrganisationID,
		DeviceID:       meta.DeviceID,
		RetryCount:     meta.RetryCount,
		Scheduled:      meta.Scheduled,
	}}
}

// Result sets the result type. Required.
func (b *ResponseMessageBuilder) Result(r ResultType) *ResponseMessageBuilder {
	b.msg.Result = r
	return b
}

// Error attaches the canonical error carried by a NOT_OK response.
func (b *ResponseMessageBuilder) Error(err CanonicalError) *ResponseMessageBuilder {
	b.msg.Error = err
	return b
}

// RetryCount overrides the retry count echoed from the request.
func (b *ResponseMessageBuilder) RetryCount(n int) *ResponseMessageBuilder {
	b.msg.RetryCount = n
	return b
}

// Payload attaches a response payload object.
func (b *ResponseMessageBuilder) Payload(p any) *ResponseMessageBuilder {
	b.msg.Payload = p
	return b
}

// Scheduled overrides the scheduled flag echoed from the request.
func (b *ResponseMessageBuilder) Scheduled(s bool) *ResponseMessageBuilder {
	b.msg.Scheduled = s
	return b
}

// Build validates that all required fields are present and returns the
// response message.
func (b *ResponseMessageBuilder) Build() (*ResponseMessage, error) {
	var missing []string
	if b.msg.CorrelationUID == "" {
		missing = append(missing, "correlation uid")
	}
	if b.msg.Domain == "" {
		missing = append(missing, "domain")
	}
	if b.msg.DomainVersion == "" {
		missing = append(missing, "domain version")
	}
	if b.msg.MessageType == "" {
		missing = append(missing, "message type")
	}
	if b.msg.OrganisationID == "" {
		missing = append(missing, "organisation identification")
	}
	if b.msg.DeviceID == "" {
		missing = append(missing, "device identification")
	}
	if b.msg.Result == "" {
		missing = append(missing, "result")
	}
	if b.msg.Result == ResultNotOK && b.msg.Error == nil {
		missing = append(missing, "error for NOT_OK result")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteResponse, missing)
	}
	msg := b.msg
	return &msg, nil
}

// ErrIncompleteResponse is returned by Build when required fields are unset.
var ErrIncompleteResponse = errors.New("incomplete response message")
