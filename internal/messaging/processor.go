package messaging

import (
	"context"
	"fmt"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
)

// Disposition is what the consumer should do with a delivery after its
// processor returns.
type Disposition int

const (
	// DispositionAck acknowledges the delivery; processing is terminal.
	DispositionAck Disposition = iota

	// DispositionRedeliver returns the delivery to the broker for another
	// attempt.
	DispositionRedeliver

	// DispositionTerminate drops the delivery without redelivery.
	DispositionTerminate

	// DispositionAsync leaves the delivery open: a response handler settles
	// it when the device operation completes.
	DispositionAsync
)

func (d Disposition) String() string {
	switch d {
	case DispositionAck:
		return "ack"
	case DispositionRedeliver:
		return "redeliver"
	case DispositionTerminate:
		return "terminate"
	case DispositionAsync:
		return "async"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

// Processor handles all command messages of one message type. Each
// invocation is self-contained; processors hold no per-message state.
type Processor interface {
	// MessageType is the message-type header value this processor handles.
	MessageType() string

	// ProcessMessage handles one delivery and decides its disposition.
	ProcessMessage(ctx context.Context, msg BrokerMessage, meta domain.MessageMetadata) Disposition
}

// ProcessorMap dispatches deliveries by message type. The mapping is built
// once at startup and read-only afterwards.
type ProcessorMap struct {
	processors map[string]Processor
}

// NewProcessorMap builds the dispatch table from the given processors.
// Registering two processors for the same message type is a wiring bug.
func NewProcessorMap(processors ...Processor) (*ProcessorMap, error) {
	m := make(map[string]Processor, len(processors))
	for _, p := range processors {
		if _, exists := m[p.MessageType()]; exists {
			return nil, fmt.Errorf("duplicate processor for message type %s", p.MessageType())
		}
		m[p.MessageType()] = p
	}
	return &ProcessorMap{processors: m}, nil
}

// Resolve returns the processor for a message type, or false when the type
// is unsupported.
func (m *ProcessorMap) Resolve(messageType string) (Processor, bool) {
	p, ok := m.processors[messageType]
	return p, ok
}
