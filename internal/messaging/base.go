package messaging

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/metrics"
)

// Fallback messages used when classifying device communication errors.
const (
	msgDeviceCommunicationFailure = "Device communication failure"
	msgNoServiceErrorCode         = "no specific service error code"
	msgNoExceptionSpecified       = "no exception specified"
	msgUnexpectedException        = "unexpected exception while handling message"
)

// expectedRetryCount marks a response produced after the redelivery budget
// ran out: the platform must not schedule further retries for it.
const expectedRetryCount = math.MaxInt32

// BaseProcessor carries the request/response lifecycle shared by all
// concrete processors: bounded redelivery, error classification and response
// construction.
type BaseProcessor struct {
	Sender          ResponseSender
	Logger          zerolog.Logger
	Metrics         *metrics.Registry
	MaxRedeliveries int
}

// CheckForRedelivery decides the fate of a delivery that failed with an
// expected (device communication) error: redeliver while the budget lasts,
// otherwise send a terminal NOT_OK response.
func (p *BaseProcessor) CheckForRedelivery(ctx context.Context, meta domain.MessageMetadata, err error, deliveryCount int) Disposition {
	redeliveryCount := deliveryCount - 1
	if redeliveryCount < p.MaxRedeliveries {
		p.Logger.Debug().
			Err(err).
			Str("correlation_uid", meta.CorrelationUID).
			Str("device_id", meta.DeviceID).
			Int("redelivery_count", redeliveryCount).
			Int("max_redeliveries", p.MaxRedeliveries).
			Msg("Requesting message redelivery")
		if p.Metrics != nil {
			p.Metrics.Redeliveries.Inc()
		}
		return DispositionRedeliver
	}

	p.Logger.Warn().
		Err(err).
		Str("correlation_uid", meta.CorrelationUID).
		Str("device_id", meta.DeviceID).
		Int("redelivery_count", redeliveryCount).
		Msg("Redelivery budget exhausted, sending error response")
	p.HandleExpectedError(ctx, meta, err)
	return DispositionAck
}

// HandleExpectedError sends the terminal NOT_OK response for an exhausted
// expected error. The retry count signals that no further retries apply.
func (p *BaseProcessor) HandleExpectedError(ctx context.Context, meta domain.MessageMetadata, err error) {
	p.sendNotOK(ctx, meta, err, expectedRetryCount)
}

// HandleUnexpectedError sends a NOT_OK response for an error outside the
// redelivery policy, echoing the caller-supplied retry count.
func (p *BaseProcessor) HandleUnexpectedError(ctx context.Context, meta domain.MessageMetadata, err error) {
	p.sendNotOK(ctx, meta, err, meta.RetryCount)
}

// SendOKResponse sends the OK response for a completed operation.
func (p *BaseProcessor) SendOKResponse(ctx context.Context, meta domain.MessageMetadata, payload any) {
	if meta.CorrelationUID == "" {
		p.Logger.Warn().
			Str("device_id", meta.DeviceID).
			Msg("No correlation uid, skipping response")
		return
	}
	msg, err := domain.NewResponseMessageBuilder(meta).
		Result(domain.ResultOK).
		Payload(payload).
		Build()
	if err != nil {
		p.Logger.Error().Err(err).
			Str("correlation_uid", meta.CorrelationUID).
			Msg("Unable to build response message")
		return
	}
	p.send(ctx, msg)
}

func (p *BaseProcessor) sendNotOK(ctx context.Context, meta domain.MessageMetadata, cause error, retryCount int) {
	if meta.CorrelationUID == "" {
		p.Logger.Warn().
			Err(cause).
			Str("device_id", meta.DeviceID).
			Msg("No correlation uid, skipping error response")
		return
	}
	msg, err := domain.NewResponseMessageBuilder(meta).
		Result(domain.ResultNotOK).
		Error(EnsureCanonicalError(cause)).
		RetryCount(retryCount).
		Build()
	if err != nil {
		p.Logger.Error().Err(err).
			Str("correlation_uid", meta.CorrelationUID).
			Msg("Unable to build error response message")
		return
	}
	p.send(ctx, msg)
}

func (p *BaseProcessor) send(ctx context.Context, msg *domain.ResponseMessage) {
	if err := p.Sender.Send(ctx, msg); err != nil {
		p.Logger.Error().Err(err).
			Str("correlation_uid", msg.CorrelationUID).
			Str("device_id", msg.DeviceID).
			Msg("Unable to send response message")
	}
}

// IsExpected reports whether an error is an expected device communication
// failure, which is subject to the bounded redelivery policy. Anything else
// is an unexpected error and answered immediately.
func IsExpected(err error) bool {
	var svcErr *iec61850.ServiceError
	return errors.As(err, &svcErr) ||
		errors.Is(err, domain.ErrConnectionNotFound) ||
		errors.Is(err, domain.ErrDeviceNotReachable)
}

// EnsureCanonicalError classifies an error into the canonical family
// surfaced upstream. Canonical errors pass through unchanged, except the
// internal adapter subtype; device service errors become technical errors
// with a readable message; everything else is wrapped as a generic technical
// error attributed to this adapter.
func EnsureCanonicalError(err error) domain.CanonicalError {
	if err == nil {
		return domain.NewTechnicalError(msgNoExceptionSpecified, nil)
	}

	switch e := err.(type) {
	case *domain.TechnicalError:
		return e
	case *domain.FunctionalError:
		return e
	}

	var svcErr *iec61850.ServiceError
	if errors.As(err, &svcErr) {
		return domain.NewTechnicalError(serviceErrorMessage(svcErr), err)
	}
	return domain.NewTechnicalError(msgUnexpectedException, err)
}

func serviceErrorMessage(err *iec61850.ServiceError) string {
	if err.Code == iec61850.DeviceCommunicationFailureCode {
		return msgDeviceCommunicationFailure
	}
	if err.Message == "" {
		return msgNoServiceErrorCode
	}
	return err.Message
}
