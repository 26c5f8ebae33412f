package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/metrics"
)

// ResponseSender publishes response messages back to the upstream platform.
type ResponseSender interface {
	Send(ctx context.Context, msg *domain.ResponseMessage) error
}

// responseBody is the JSON payload of a response message; the correlation
// and addressing fields travel in the headers.
type responseBody struct {
	Result  domain.ResultType `json:"result"`
	Error   string            `json:"error,omitempty"`
	Payload any               `json:"payload,omitempty"`
}

// JetStreamSender publishes responses to a JetStream subject per device.
type JetStreamSender struct {
	js            jetstream.JetStream
	subjectPrefix string
	logger        zerolog.Logger
	metrics       *metrics.Registry
}

// NewJetStreamSender creates a response sender publishing to
// "<prefix>.<device id>".
func NewJetStreamSender(js jetstream.JetStream, subjectPrefix string, logger zerolog.Logger, registry *metrics.Registry) *JetStreamSender {
	return &JetStreamSender{
		js:            js,
		subjectPrefix: subjectPrefix,
		logger:        logger.With().Str("component", "response-sender").Logger(),
		metrics:       registry,
	}
}

// Send implements ResponseSender.
func (s *JetStreamSender) Send(ctx context.Context, msg *domain.ResponseMessage) error {
	body := responseBody{Result: msg.Result, Payload: msg.Payload}
	if msg.Error != nil {
		body.Error = msg.Error.Error()
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("serialize response: %w", err)
	}

	header := nats.Header{}
	header.Set(HeaderCorrelationUID, msg.CorrelationUID)
	header.Set(HeaderDomain, msg.Domain)
	header.Set(HeaderDomainVersion, msg.DomainVersion)
	header.Set(HeaderMessageType, msg.MessageType)
	header.Set(HeaderOrganisationID, msg.OrganisationID)
	header.Set(HeaderDeviceID, msg.DeviceID)
	header.Set(HeaderResult, string(msg.Result))
	header.Set(HeaderRetryCount, strconv.Itoa(msg.RetryCount))
	header.Set(HeaderScheduled, strconv.FormatBool(msg.Scheduled))

	subject := fmt.Sprintf("%s.%s", s.subjectPrefix, msg.DeviceID)
	if _, err := s.js.PublishMsg(ctx, &nats.Msg{Subject: subject, Header: header, Data: data}); err != nil {
		return fmt.Errorf("publish response to %s: %w", subject, err)
	}

	if s.metrics != nil {
		s.metrics.RecordResponse(string(msg.Result))
	}
	s.logger.Debug().
		Str("correlation_uid", msg.CorrelationUID).
		Str("device_id", msg.DeviceID).
		Str("message_type", msg.MessageType).
		Str("result", string(msg.Result)).
		Msg("Response message sent")
	return nil
}
