// Package messaging bridges broker-delivered command messages to device
// operations and emits correlated response messages, honoring at-least-once
// delivery with a bounded redelivery budget.
package messaging

import (
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
)

// Message header names shared by command and response messages.
const (
	HeaderCorrelationUID = "correlation-uid"
	HeaderDomain         = "domain"
	HeaderDomainVersion  = "domain-version"
	HeaderMessageType    = "message-type"
	HeaderOrganisationID = "organisation-identification"
	HeaderDeviceID       = "device-identification"
	HeaderIPAddress      = "ip-address"
	HeaderScheduled      = "is-scheduled"
	HeaderRetryCount     = "retry-count"
	HeaderResult         = "result"
)

// BrokerMessage is the adapter's view of one delivered broker message. The
// delivery count is a snapshot taken at receipt; acknowledging is terminal,
// a negative acknowledgment requests redelivery and terminating drops the
// message without redelivery.
type BrokerMessage interface {
	Subject() string
	Headers() nats.Header
	Data() []byte
	DeliveryCount() int
	Ack() error
	Nak() error
	Term() error
}

// MetadataFromMessage extracts the command metadata from the message
// headers. A missing required header or an unparseable typed header makes
// the whole message malformed.
func MetadataFromMessage(msg BrokerMessage) (domain.MessageMetadata, error) {
	h := msg.Headers()
	meta := domain.MessageMetadata{
		CorrelationUID: h.Get(HeaderCorrelationUID),
		Domain:         h.Get(HeaderDomain),
		DomainVersion:  h.Get(HeaderDomainVersion),
		MessageType:    h.Get(HeaderMessageType),
		OrganisationID: h.Get(HeaderOrganisationID),
		DeviceID:       h.Get(HeaderDeviceID),
		IPAddress:      h.Get(HeaderIPAddress),
	}

	var missing []string
	if meta.MessageType == "" {
		missing = append(missing, HeaderMessageType)
	}
	if meta.DeviceID == "" {
		missing = append(missing, HeaderDeviceID)
	}
	if meta.OrganisationID == "" {
		missing = append(missing, HeaderOrganisationID)
	}
	if len(missing) > 0 {
		return domain.MessageMetadata{}, fmt.Errorf("%w: missing headers %v", domain.ErrMalformedMessage, missing)
	}

	if v := h.Get(HeaderScheduled); v != "" {
		scheduled, err := strconv.ParseBool(v)
		if err != nil {
			return domain.MessageMetadata{}, fmt.Errorf("%w: header %s: %v", domain.ErrMalformedMessage, HeaderScheduled, err)
		}
		meta.Scheduled = scheduled
	}
	if v := h.Get(HeaderRetryCount); v != "" {
		retryCount, err := strconv.Atoi(v)
		if err != nil {
			return domain.MessageMetadata{}, fmt.Errorf("%w: header %s: %v", domain.ErrMalformedMessage, HeaderRetryCount, err)
		}
		meta.RetryCount = retryCount
	}

	return meta, nil
}
