package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/device"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
)

// SetDataProcessor handles SET_DATA command messages: it writes the
// requested set points to the device and answers asynchronously.
type SetDataProcessor struct {
	BaseProcessor
	devices *device.Service
}

// NewSetDataProcessor creates the SET_DATA processor.
func NewSetDataProcessor(devices *device.Service, base BaseProcessor) *SetDataProcessor {
	base.Logger = base.Logger.With().Str("processor", MessageTypeSetData).Logger()
	return &SetDataProcessor{BaseProcessor: base, devices: devices}
}

// MessageType implements Processor.
func (p *SetDataProcessor) MessageType() string { return MessageTypeSetData }

// ProcessMessage implements Processor.
func (p *SetDataProcessor) ProcessMessage(ctx context.Context, msg BrokerMessage, meta domain.MessageMetadata) Disposition {
	var req domain.SetDataRequest
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
		Msg("Processing set data request")

	handler := NewDeviceResponseHandler(&p.BaseProcessor, meta, msg)
	p.devices.SetDataAsync(ctx, meta.DeviceID, &req, handler)
	return DispositionAsync
}
