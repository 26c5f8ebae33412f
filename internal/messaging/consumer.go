package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/metrics"
)

// ConsumerConfig holds the broker consumer configuration.
type ConsumerConfig struct {
	URL           string
	Stream        string
	ConsumerName  string
	FilterSubject string

	// MaxRedeliveries bounds how often a failing delivery is retried before
	// the adapter answers NOT_OK. MaxDeliver on the consumer is one higher:
	// the first delivery is not a redelivery.
	MaxRedeliveries int

	AckWait      time.Duration
	DrainTimeout time.Duration
}

// DefaultConsumerConfig returns a ConsumerConfig with sensible defaults.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:             nats.DefaultURL,
		Stream:          "OSGP-REQUESTS",
		ConsumerName:    "iec61850-adapter",
		FilterSubject:   "osgp.requests.iec61850.>",
		MaxRedeliveries: 3,
		AckWait:         30 * time.Second,
		DrainTimeout:    10 * time.Second,
	}
}

// jetstreamMessage adapts a jetstream.Msg to BrokerMessage. The delivery
// count is read once at wrap time.
type jetstreamMessage struct {
	msg           jetstream.Msg
	deliveryCount int
}

func wrapMessage(msg jetstream.Msg) *jetstreamMessage {
	deliveryCount := 1
	if meta, err := msg.Metadata(); err == nil {
		deliveryCount = int(meta.NumDelivered)
	}
	return &jetstreamMessage{msg: msg, deliveryCount: deliveryCount}
}

func (m *jetstreamMessage) Subject() string      { return m.msg.Subject() }
func (m *jetstreamMessage) Headers() nats.Header { return m.msg.Headers() }
func (m *jetstreamMessage) Data() []byte         { return m.msg.Data() }
func (m *jetstreamMessage) DeliveryCount() int   { return m.deliveryCount }
func (m *jetstreamMessage) Ack() error           { return m.msg.Ack() }
func (m *jetstreamMessage) Nak() error           { return m.msg.Nak() }
func (m *jetstreamMessage) Term() error          { return m.msg.Term() }

// Consumer consumes command messages from a JetStream stream and dispatches
// them to the registered processors.
type Consumer struct {
	config     ConsumerConfig
	processors *ProcessorMap
	logger     zerolog.Logger
	metrics    *metrics.Registry

	conn    *nats.Conn
	js      jetstream.JetStream
	consume jetstream.ConsumeContext
}

// NewConsumer creates the command consumer.
func NewConsumer(config ConsumerConfig, processors *ProcessorMap, logger zerolog.Logger, registry *metrics.Registry) *Consumer {
	return &Consumer{
		config:     config,
		processors: processors,
		logger:     logger.With().Str("component", "command-consumer").Logger(),
		metrics:    registry,
	}
}

// Connect establishes the NATS connection and the JetStream context.
func (c *Consumer) Connect(ctx context.Context) error {
	conn, err := nats.Connect(c.config.URL,
		nats.Name(c.config.ConsumerName),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(*nats.Conn) {
			c.logger.Info().Msg("NATS connection re-established")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn().Err(err).Msg("NATS connection lost")
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS at %s: %w", c.config.URL, err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("initialize JetStream: %w", err)
	}
	c.conn = conn
	c.js = js
	c.logger.Info().Str("url", c.config.URL).Msg("Connected to NATS")
	return nil
}

// JetStream exposes the JetStream context, e.g. for the response sender.
func (c *Consumer) JetStream() jetstream.JetStream { return c.js }

// SetProcessors installs the processor map. The response sender needs the
// JetStream context of a connected consumer, so the processors can only be
// built after Connect; call this before Start.
func (c *Consumer) SetProcessors(processors *ProcessorMap) { c.processors = processors }

// Start creates or updates the durable consumer and begins dispatching
// deliveries.
func (c *Consumer) Start(ctx context.Context) error {
	if c.js == nil {
		return fmt.Errorf("consumer is not connected")
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.config.Stream, jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: c.config.FilterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.config.AckWait,
		MaxDeliver:    c.config.MaxRedeliveries + 1,
	})
	if err != nil {
		return fmt.Errorf("create consumer on stream %s: %w", c.config.Stream, err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		c.dispatch(ctx, wrapMessage(msg))
	})
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.consume = consumeCtx

	c.logger.Info().
		Str("stream", c.config.Stream).
		Str("subject", c.config.FilterSubject).
		Int("max_redeliveries", c.config.MaxRedeliveries).
		Msg("Command consumer started")
	return nil
}

// dispatch handles one delivery: metadata extraction, processor lookup and
// disposition handling. A message whose metadata cannot be read is dropped
// without redelivery so a stream-side dead-letter policy can pick it up.
func (c *Consumer) dispatch(ctx context.Context, msg BrokerMessage) {
	meta, err := MetadataFromMessage(msg)
	if err != nil {
		c.logger.Error().Err(err).
			Str("subject", msg.Subject()).
			Msg("Unable to read message metadata, dropping message")
		if c.metrics != nil {
			c.metrics.MalformedMessages.Inc()
		}
		c.settle(msg, DispositionTerminate, "")
		return
	}

	processor, ok := c.processors.Resolve(meta.MessageType)
	if !ok {
		c.logger.Error().
			Str("message_type", meta.MessageType).
			Str("correlation_uid", meta.CorrelationUID).
			Str("device_id", meta.DeviceID).
			Msg("No processor for message type, dropping message")
		if c.metrics != nil {
			c.metrics.MalformedMessages.Inc()
		}
		c.settle(msg, DispositionTerminate, meta.CorrelationUID)
		return
	}

	c.logger.Debug().
		Str("message_type", meta.MessageType).
		Str("correlation_uid", meta.CorrelationUID).
		Str("device_id", meta.DeviceID).
		Int("delivery_count", msg.DeliveryCount()).
		Msg("Dispatching command message")

	start := time.Now()
	disposition := processor.ProcessMessage(ctx, msg, meta)
	if c.metrics != nil {
		c.metrics.RecordCommand(meta.MessageType, time.Since(start).Seconds())
	}
	c.settle(msg, disposition, meta.CorrelationUID)
}

func (c *Consumer) settle(msg BrokerMessage, d Disposition, correlationUID string) {
	var err error
	switch d {
	case DispositionAck:
		err = msg.Ack()
	case DispositionRedeliver:
		err = msg.Nak()
	case DispositionTerminate:
		err = msg.Term()
	case DispositionAsync:
		// The response handler owns the delivery now.
		return
	}
	if err != nil {
		c.logger.Warn().Err(err).
			Str("correlation_uid", correlationUID).
			Str("disposition", d.String()).
			Msg("Unable to settle delivery")
	}
}

// HealthCheck implements the health.Checker interface.
func (c *Consumer) HealthCheck(ctx context.Context) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return fmt.Errorf("NATS connection down")
	}
	return nil
}

// Close stops consuming and drains the connection.
func (c *Consumer) Close() {
	if c.consume != nil {
		c.consume.Stop()
	}
	if c.conn != nil {
		done := make(chan error, 1)
		go func() { done <- c.conn.Drain() }()
		select {
		case err := <-done:
			if err != nil {
				c.logger.Warn().Err(err).Msg("Error draining NATS connection")
			}
		case <-time.After(c.config.DrainTimeout):
			c.logger.Warn().Msg("Drain timeout, closing NATS connection")
			c.conn.Close()
		}
	}
	c.logger.Info().Msg("Command consumer stopped")
}
