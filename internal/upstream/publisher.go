package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/metrics"
)

// MQTT errors.
var (
	ErrNotConnected  = fmt.Errorf("MQTT client not connected")
	ErrPublishFailed = fmt.Errorf("MQTT publish failed")
	ErrConnectFailed = fmt.Errorf("MQTT connection failed")
)

// Config holds MQTT publisher configuration.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	TopicPrefix    string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	PublishTimeout time.Duration
	BufferSize     int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BrokerURL:      "tcp://localhost:1883",
		ClientID:       "iec61850-adapter",
		QoS:            1,
		TopicPrefix:    "osgp/monitoring",
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 10 * time.Second,
		ReconnectDelay: 5 * time.Second,
		PublishTimeout: 5 * time.Second,
		BufferSize:     10000,
	}
}

type bufferedMessage struct {
	topic   string
	payload []byte
}

// Publisher implements Service over an MQTT connection. Messages published
// while disconnected are buffered and drained after reconnect.
type Publisher struct {
	config    Config
	client    pahomqtt.Client
	logger    zerolog.Logger
	metrics   *metrics.Registry
	mu        sync.RWMutex
	connected atomic.Bool
	buffer    chan *bufferedMessage
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewPublisher creates an MQTT-backed upstream publisher.
func NewPublisher(config Config, logger zerolog.Logger, registry *metrics.Registry) *Publisher {
	if config.BufferSize <= 0 {
		config.BufferSize = 10000
	}
	if config.PublishTimeout == 0 {
		config.PublishTimeout = 5 * time.Second
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.TopicPrefix == "" {
		config.TopicPrefix = "osgp/monitoring"
	}
	return &Publisher{
		config:  config,
		logger:  logger.With().Str("component", "upstream-publisher").Logger(),
		metrics: registry,
		buffer:  make(chan *bufferedMessage, config.BufferSize),
		done:    make(chan struct{}),
	}
}

// Connect establishes the connection to the MQTT broker and starts the
// buffer processor.
func (p *Publisher) Connect(ctx context.Context) error {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.config.BrokerURL)
	opts.SetClientID(p.config.ClientID)
	opts.SetKeepAlive(p.config.KeepAlive)
	opts.SetConnectTimeout(p.config.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(p.config.ReconnectDelay)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		p.connected.Store(true)
		p.logger.Info().Msg("MQTT connection established")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.connected.Store(false)
		p.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	p.mu.Lock()
	p.client = pahomqtt.NewClient(opts)
	client := p.client
	p.mu.Unlock()

	p.logger.Info().Str("broker", p.config.BrokerURL).Msg("Connecting to MQTT broker")
	token := client.Connect()

	connectDone := make(chan bool, 1)
	go func() { connectDone <- token.WaitTimeout(p.config.ConnectTimeout) }()

	select {
	case ok := <-connectDone:
		if !ok {
			return fmt.Errorf("%w: connection timeout", ErrConnectFailed)
		}
		if token.Error() != nil {
			return fmt.Errorf("%w: %v", ErrConnectFailed, token.Error())
		}
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrConnectFailed, ctx.Err())
	}

	p.connected.Store(true)
	p.wg.Add(1)
	go p.processBuffer()
	return nil
}

// Disconnect stops the buffer processor and closes the connection.
func (p *Publisher) Disconnect() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(1000)
	}
	p.connected.Store(false)
	p.logger.Info().Msg("Disconnected from MQTT broker")
}

// Envelope wraps every published payload with a unique message ID so
// consumers can deduplicate across reconnects.
type Envelope struct {
	MessageUID string          `json:"message_uid"`
	DeviceID   string          `json:"device_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

func newEnvelope(deviceID string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}
	return json.Marshal(Envelope{
		MessageUID: uuid.New().String(),
		DeviceID:   deviceID,
		Timestamp:  time.Now().UTC(),
		Payload:    body,
	})
}

// SendMeasurements implements Service.
func (p *Publisher) SendMeasurements(deviceID string, response *domain.DataResponse) error {
	payload, err := newEnvelope(deviceID, response)
	if err != nil {
		return fmt.Errorf("serialize data response: %w", err)
	}
	return p.publish(MeasurementsTopic(p.config.TopicPrefix, deviceID), payload)
}

// SendPqValues implements Service.
func (p *Publisher) SendPqValues(deviceID, reportID string, response *domain.PQValuesResponse) error {
	payload, err := newEnvelope(deviceID, response)
	if err != nil {
		return fmt.Errorf("serialize pq response: %w", err)
	}
	return p.publish(PqValuesTopic(p.config.TopicPrefix, deviceID, reportID), payload)
}

// MeasurementsTopic builds the topic measurement envelopes are published to.
func MeasurementsTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s/measurements", prefix, deviceID)
}

// PqValuesTopic builds the topic power-quality envelopes are published to.
func PqValuesTopic(prefix, deviceID, reportID string) string {
	return fmt.Sprintf("%s/%s/pq/%s", prefix, deviceID, reportID)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	if !p.connected.Load() {
		return p.bufferMessage(topic, payload)
	}

	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}

	token := client.Publish(topic, p.config.QoS, false, payload)
	if !token.WaitTimeout(p.config.PublishTimeout) {
		if p.metrics != nil {
			p.metrics.UpstreamFailed.Inc()
		}
		return fmt.Errorf("%w: publish timeout", ErrPublishFailed)
	}
	if token.Error() != nil {
		if p.metrics != nil {
			p.metrics.UpstreamFailed.Inc()
		}
		return fmt.Errorf("%w: %v", ErrPublishFailed, token.Error())
	}
	if p.metrics != nil {
		p.metrics.UpstreamPublished.Inc()
	}
	return nil
}

func (p *Publisher) bufferMessage(topic string, payload []byte) error {
	msg := &bufferedMessage{topic: topic, payload: payload}
	select {
	case p.buffer <- msg:
		if p.metrics != nil {
			p.metrics.UpstreamBuffered.Set(float64(len(p.buffer)))
		}
		return nil
	default:
		// Buffer full, drop oldest message.
		select {
		case <-p.buffer:
			p.buffer <- msg
			p.logger.Warn().Msg("Buffer full, dropped oldest message")
			return nil
		default:
			return fmt.Errorf("message buffer full")
		}
	}
}

func (p *Publisher) processBuffer() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.buffer:
			if p.connected.Load() {
				if err := p.publish(msg.topic, msg.payload); err != nil {
					p.logger.Warn().Err(err).Str("topic", msg.topic).Msg("Failed to publish buffered message")
				}
			} else {
				// Re-buffer if not connected.
				select {
				case p.buffer <- msg:
				default:
				}
				time.Sleep(100 * time.Millisecond)
			}
			if p.metrics != nil {
				p.metrics.UpstreamBuffered.Set(float64(len(p.buffer)))
			}
		}
	}
}

// IsConnected reports whether the publisher is connected to the broker.
func (p *Publisher) IsConnected() bool { return p.connected.Load() }

// HealthCheck implements the health.Checker interface.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if !p.connected.Load() {
		return ErrNotConnected
	}
	return nil
}
