// Package metrics provides Prometheus metrics for the IEC 61850 adapter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all Prometheus metrics for the service.
type Registry struct {
	// Reporting metrics
	ReportsReceived       *prometheus.CounterVec
	ReportsDiscarded      *prometheus.CounterVec
	ReportsDispatched     *prometheus.CounterVec
	ReportOverflows       prometheus.Counter
	MembersHandled        prometheus.Counter
	MembersUnsupported    prometheus.Counter
	MeasurementsForwarded prometheus.Counter

	// Messaging metrics
	CommandsReceived  *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	Redeliveries      prometheus.Counter
	ResponsesSent     *prometheus.CounterVec
	MalformedMessages prometheus.Counter

	// Upstream publisher metrics
	UpstreamPublished prometheus.Counter
	UpstreamFailed    prometheus.Counter
	UpstreamBuffered  prometheus.Gauge

	// Device metrics
	DeviceOperations   *prometheus.CounterVec
	BreakerStateChange *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	return &Registry{
		ReportsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "reporting",
			Name:      "reports_received_total",
			Help:      "Total reports received per device",
		}, []string{"device_id"}),
		ReportsDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "reporting",
			Name:      "reports_discarded_total",
			Help:      "Total reports discarded, by reason",
		}, []string{"device_id", "reason"}),
		ReportsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "reporting",
			Name:      "reports_dispatched_total",
			Help:      "Total reports forwarded upstream",
		}, []string{"device_id"}),
		ReportOverflows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "reporting",
			Name:      "buffer_overflows_total",
			Help:      "Reports received with the buffer overflow flag set",
		}),
		MembersHandled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "reporting",
			Name:      "members_handled_total",
			Help:      "Data-set members translated into measurements",
		}),
		MembersUnsupported: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "reporting",
			Name:      "members_unsupported_total",
			Help:      "Data-set members skipped as unsupported",
		}),
		MeasurementsForwarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "reporting",
			Name:      "measurements_forwarded_total",
			Help:      "Canonical measurements forwarded upstream",
		}),

		CommandsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "messaging",
			Name:      "commands_received_total",
			Help:      "Command messages received, by message type",
		}, []string{"message_type"}),
		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adapter",
			Subsystem: "messaging",
			Name:      "command_duration_seconds",
			Help:      "Command processing duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"message_type"}),
		Redeliveries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "messaging",
			Name:      "redeliveries_requested_total",
			Help:      "Deliveries returned to the broker for redelivery",
		}),
		ResponsesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "messaging",
			Name:      "responses_sent_total",
			Help:      "Response messages sent, by result",
		}, []string{"result"}),
		MalformedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "messaging",
			Name:      "malformed_messages_total",
			Help:      "Command messages dropped because metadata extraction failed",
		}),

		UpstreamPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "upstream",
			Name:      "messages_published_total",
			Help:      "Result envelopes published upstream",
		}),
		UpstreamFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "upstream",
			Name:      "messages_failed_total",
			Help:      "Result envelope publishes that failed",
		}),
		UpstreamBuffered: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "adapter",
			Subsystem: "upstream",
			Name:      "buffered_messages",
			Help:      "Result envelopes waiting in the publish buffer",
		}),

		DeviceOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "device",
			Name:      "operations_total",
			Help:      "Device operations executed, by operation and status",
		}, []string{"operation", "status"}),
		BreakerStateChange: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adapter",
			Subsystem: "device",
			Name:      "breaker_state_changes_total",
			Help:      "Circuit breaker state transitions per device",
		}, []string{"device_id", "state"}),
	}
}

// RecordReportDiscarded records a discarded report with its reason.
func (r *Registry) RecordReportDiscarded(deviceID, reason string) {
	r.ReportsDiscarded.WithLabelValues(deviceID, reason).Inc()
}

// RecordReportDispatched records a dispatched report and its measurements.
func (r *Registry) RecordReportDispatched(deviceID string, measurements int) {
	r.ReportsDispatched.WithLabelValues(deviceID).Inc()
	r.MeasurementsForwarded.Add(float64(measurements))
}

// RecordCommand records one command processing attempt.
func (r *Registry) RecordCommand(messageType string, seconds float64) {
	r.CommandsReceived.WithLabelValues(messageType).Inc()
	r.CommandDuration.WithLabelValues(messageType).Observe(seconds)
}

// RecordResponse records a sent response by result.
func (r *Registry) RecordResponse(result string) {
	r.ResponsesSent.WithLabelValues(result).Inc()
}

// RecordDeviceOperation records one device operation outcome.
func (r *Registry) RecordDeviceOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.DeviceOperations.WithLabelValues(operation, status).Inc()
}
