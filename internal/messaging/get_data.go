package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/device"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
)

// Message types handled by this adapter.
const (
	MessageTypeGetData = "GET_DATA"
	MessageTypeSetData = "SET_DATA"
)

// GetDataProcessor handles GET_DATA command messages: it reads the requested
// systems from the device and answers asynchronously.
type GetDataProcessor struct {
	BaseProcessor
	devices *device.Service
}

// NewGetDataProcessor creates the GET_DATA processor.
func NewGetDataProcessor(devices *device.Service, base BaseProcessor) *GetDataProcessor {
	base.Logger = base.Logger.With().Str("processor", MessageTypeGetData).Logger()
	return &GetDataProcessor{BaseProcessor: base, devices: devices}
}

// MessageType implements Processor.
func (p *GetDataProcessor) MessageType() string { return MessageTypeGetData }

// ProcessMessage implements Processor. The device operation completes on its
// own goroutine; the delivery stays open until the response handler settles
// it.
func (p *GetDataProcessor) ProcessMessage(ctx context.Context, msg BrokerMessage, meta domain.MessageMetadata) Disposition {
	var req domain.GetDataRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		p.Logger.Error().Err(err).
			Str("correlation_uid", meta.CorrelationUID).
			Str("device_id", meta.DeviceID).
			Msg("Unable to parse request payload")
		p.HandleUnexpectedError(ctx, meta, fmt.Errorf("%w: %v", domain.ErrMissingPayload, err))
		return DispositionAck
	}

	p.Logger.Info().
		Str("correlation_uid", meta.CorrelationUID).
		Str("device_id", meta.DeviceID).
		Str("organisation_id", meta.OrganisationID).
		Int("systems", len(req.Systems)).
		Msg("Processing get data request")

	handler := NewDeviceResponseHandler(&p.BaseProcessor, meta, msg)
	p.devices.GetDataAsync(ctx, meta.DeviceID, &req, handler)
	return DispositionAsync
}
