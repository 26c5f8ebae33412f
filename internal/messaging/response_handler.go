package messaging

import (
	"context"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
)

// DeviceResponseHandler settles an open delivery when its asynchronous
// device operation completes. It carries the delivery-count snapshot taken
// at receipt so that late completions apply the same redelivery budget as
// synchronous failures. It implements device.ResponseHandler.
type DeviceResponseHandler struct {
	processor     *BaseProcessor
	meta          domain.MessageMetadata
	msg           BrokerMessage
	deliveryCount int
}

// NewDeviceResponseHandler binds a handler to one open delivery.
func NewDeviceResponseHandler(processor *BaseProcessor, meta domain.MessageMetadata, msg BrokerMessage) *DeviceResponseHandler {
	return &DeviceResponseHandler{
		processor:     processor,
		meta:          meta,
		msg:           msg,
		deliveryCount: msg.DeliveryCount(),
	}
}

// HandleResponse sends the OK response and acknowledges the delivery.
func (h *DeviceResponseHandler) HandleResponse(payload any) {
	ctx := context.Background()
	h.processor.SendOKResponse(ctx, h.meta, payload)
	h.settle(DispositionAck)
}

// HandleError applies the expected/unexpected error split: expected errors
// run through the redelivery budget, unexpected errors are answered
// immediately with the caller-supplied retry count.
func (h *DeviceResponseHandler) HandleError(err error) {
	ctx := context.Background()
	if IsExpected(err) {
		h.settle(h.processor.CheckForRedelivery(ctx, h.meta, err, h.deliveryCount))
		return
	}
	h.processor.HandleUnexpectedError(ctx, h.meta, err)
	h.settle(DispositionAck)
}

func (h *DeviceResponseHandler) settle(d Disposition) {
	var err error
	switch d {
	case DispositionAck:
		err = h.msg.Ack()
	case DispositionRedeliver:
		err = h.msg.Nak()
	case DispositionTerminate:
		err = h.msg.Term()
	case DispositionAsync:
		return
	}
	if err != nil {
		h.processor.Logger.Warn().Err(err).
			Str("correlation_uid", h.meta.CorrelationUID).
			Str("disposition", d.String()).
			Msg("Unable to settle delivery")
	}
}
