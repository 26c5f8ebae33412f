// Package main is the entry point for the IEC 61850 protocol adapter.
// It initializes all components and manages the application lifecycle.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/adapter/config"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/device"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/health"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/messaging"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/metrics"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/reporting"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/upstream"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/pkg/logging"
)

const (
	serviceName    = "iec61850-adapter"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.New(serviceName, serviceVersion, logging.LogConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger.Info().Str("env", cfg.Environment).Msg("Starting IEC 61850 protocol adapter")

	// Initialize metrics
	metricsRegistry := metrics.NewRegistry()

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load device configurations
	store, err := device.LoadStore(cfg.DevicesConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load device configurations")
	}
	defaultUseCombinedLoad := cfg.IEC61850.DefaultUseCombinedLoad || store.DefaultUseCombinedLoad()
	logger.Info().
		Int("count", store.Size()).
		Bool("default_use_combined_load", defaultUseCombinedLoad).
		Msg("Loaded device configurations")

	// Initialize MQTT publisher for measurement results
	publisher := upstream.NewPublisher(upstream.Config{
		BrokerURL:      cfg.MQTT.BrokerURL,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		QoS:            cfg.MQTT.QoS,
		TopicPrefix:    cfg.MQTT.TopicPrefix,
		KeepAlive:      cfg.MQTT.KeepAlive,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		ReconnectDelay: cfg.MQTT.ReconnectDelay,
		PublishTimeout: cfg.MQTT.PublishTimeout,
		BufferSize:     cfg.MQTT.BufferSize,
	}, logger, metricsRegistry)
	if err := publisher.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MQTT broker")
	}
	defer publisher.Disconnect()

	// Initialize the device service. The MMS association layer is an
	// external collaborator behind the Client interface; without one linked
	// in, commands fail as device communication failures.
	wireClient := iec61850.NewOfflineClient()
	deviceService := device.NewService(wireClient, store, logger, metricsRegistry)
	for _, rec := range store.Records() {
		// One report listener per connection; the wire client invokes it
		// from the connection's callback goroutine.
		listener := reporting.NewEventListener(
			rec.DeviceID, store, defaultUseCombinedLoad, publisher, logger, metricsRegistry)
		deviceService.RegisterConnection(&iec61850.DeviceConnection{
			DeviceID:   rec.DeviceID,
			ServerName: rec.ServerName,
			Listener:   listener,
		})
	}

	// Initialize the command consumer and its processors
	consumer := messaging.NewConsumer(messaging.ConsumerConfig{
		URL:             cfg.NATS.URL,
		Stream:          cfg.NATS.Stream,
		ConsumerName:    cfg.NATS.ConsumerName,
		FilterSubject:   cfg.NATS.FilterSubject,
		MaxRedeliveries: cfg.NATS.MaxRedeliveries,
		AckWait:         cfg.NATS.AckWait,
		DrainTimeout:    cfg.NATS.DrainTimeout,
	}, nil, logger, metricsRegistry)
	if err := consumer.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer consumer.Close()

	sender := messaging.NewJetStreamSender(consumer.JetStream(), cfg.NATS.ResponseSubject, logger, metricsRegistry)
	base := messaging.BaseProcessor{
		Sender:          sender,
		Logger:          logger,
		Metrics:         metricsRegistry,
		MaxRedeliveries: cfg.NATS.MaxRedeliveries,
	}
	processors, err := messaging.NewProcessorMap(
		messaging.NewGetDataProcessor(deviceService, base),
		messaging.NewSetDataProcessor(deviceService, base),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build processor map")
	}
	consumer.SetProcessors(processors)

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start command consumer")
	}

	// Initialize health checks and HTTP server
	healthChecker := health.NewChecker(serviceName, serviceVersion)
	healthChecker.AddCheck("mqtt", publisher)
	healthChecker.AddCheck("nats", consumer)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthChecker.HealthHandler)
	mux.HandleFunc("/health/live", healthChecker.LivenessHandler)
	mux.HandleFunc("/health/ready", healthChecker.ReadinessHandler)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	logger.Info().
		Str("nats_url", cfg.NATS.URL).
		Str("mqtt_broker", cfg.MQTT.BrokerURL).
		Int("devices", store.Size()).
		Int("http_port", cfg.HTTP.Port).
		Msg("IEC 61850 protocol adapter started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	consumer.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}
	publisher.Disconnect()

	logger.Info().Msg("IEC 61850 protocol adapter shutdown complete")
}
