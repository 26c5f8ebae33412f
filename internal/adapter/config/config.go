// Package config provides configuration management for the IEC 61850
// protocol adapter. It supports environment variables, config files
// (YAML/JSON), and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the protocol adapter.
type Config struct {
	// Environment is the deployment environment (development, staging, production)
	Environment string `mapstructure:"environment"`

	// DevicesConfigPath is the path to the device configurations file
	DevicesConfigPath string `mapstructure:"devices_config_path"`

	// HTTP server configuration (health + metrics endpoints)
	HTTP HTTPConfig `mapstructure:"http"`

	// NATS broker configuration (command messages in, responses out)
	NATS NATSConfig `mapstructure:"nats"`

	// MQTT configuration (measurement results upstream)
	MQTT MQTTConfig `mapstructure:"mqtt"`

	// IEC61850 device communication configuration
	IEC61850 IEC61850Config `mapstructure:"iec61850"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// NATSConfig holds the broker consumer configuration.
type NATSConfig struct {
	URL             string        `mapstructure:"url"`
	Stream          string        `mapstructure:"stream"`
	ConsumerName    string        `mapstructure:"consumer_name"`
	FilterSubject   string        `mapstructure:"filter_subject"`
	ResponseSubject string        `mapstructure:"response_subject"`
	MaxRedeliveries int           `mapstructure:"max_redeliveries"`
	AckWait         time.Duration `mapstructure:"ack_wait"`
	DrainTimeout    time.Duration `mapstructure:"drain_timeout"`
}

// MQTTConfig holds MQTT client configuration.
type MQTTConfig struct {
	BrokerURL      string        `mapstructure:"broker_url"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	QoS            byte          `mapstructure:"qos"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	BufferSize     int           `mapstructure:"buffer_size"`
}

// IEC61850Config holds device communication configuration.
type IEC61850Config struct {
	// DefaultPort is the MMS port used when a device record has none.
	DefaultPort int `mapstructure:"default_port"`

	// ConnectTimeout bounds association establishment.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// DefaultUseCombinedLoad is the process-wide fallback for unknown
	// devices; the devices file can override it.
	DefaultUseCombinedLoad bool `mapstructure:"default_use_combined_load"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	Output     string `mapstructure:"output"` // stdout, stderr, or file path
	TimeFormat string `mapstructure:"time_format"`
}

// Load loads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file search paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/iec61850-adapter")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, will use defaults and env vars
	}

	// Environment variable binding
	v.SetEnvPrefix("ADAPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")
	v.SetDefault("devices_config_path", "./config/devices.yaml")

	// HTTP
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	// NATS
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream", "OSGP-REQUESTS")
	v.SetDefault("nats.consumer_name", "iec61850-adapter")
	v.SetDefault("nats.filter_subject", "osgp.requests.iec61850.>")
	v.SetDefault("nats.response_subject", "osgp.responses.iec61850")
	v.SetDefault("nats.max_redeliveries", 3)
	v.SetDefault("nats.ack_wait", 30*time.Second)
	v.SetDefault("nats.drain_timeout", 10*time.Second)

	// MQTT
	v.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "iec61850-adapter")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.topic_prefix", "osgp/monitoring")
	v.SetDefault("mqtt.keep_alive", 30*time.Second)
	v.SetDefault("mqtt.connect_timeout", 10*time.Second)
	v.SetDefault("mqtt.reconnect_delay", 5*time.Second)
	v.SetDefault("mqtt.publish_timeout", 5*time.Second)
	v.SetDefault("mqtt.buffer_size", 10000)

	// IEC 61850
	v.SetDefault("iec61850.default_port", 102)
	v.SetDefault("iec61850.connect_timeout", 10*time.Second)
	v.SetDefault("iec61850.default_use_combined_load", false)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)
}

// bindEnvVars binds environment variables to config keys.
func bindEnvVars(v *viper.Viper) {
	// NATS environment variables
	_ = v.BindEnv("nats.url", "NATS_URL")
	_ = v.BindEnv("nats.stream", "NATS_STREAM")
	_ = v.BindEnv("nats.consumer_name", "NATS_CONSUMER_NAME")
	_ = v.BindEnv("nats.max_redeliveries", "NATS_MAX_REDELIVERIES")

	// MQTT environment variables
	_ = v.BindEnv("mqtt.broker_url", "MQTT_BROKER_URL")
	_ = v.BindEnv("mqtt.username", "MQTT_USERNAME")
	_ = v.BindEnv("mqtt.password", "MQTT_PASSWORD")
	_ = v.BindEnv("mqtt.client_id", "MQTT_CLIENT_ID")

	// General environment variables
	_ = v.BindEnv("environment", "ENVIRONMENT")
	_ = v.BindEnv("devices_config_path", "DEVICES_CONFIG_PATH")

	// HTTP
	_ = v.BindEnv("http.port", "HTTP_PORT")

	// Logging
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}
	if c.NATS.Stream == "" {
		return fmt.Errorf("NATS stream is required")
	}
	if c.NATS.MaxRedeliveries < 0 {
		return fmt.Errorf("NATS max redeliveries must not be negative")
	}
	if c.MQTT.BrokerURL == "" {
		return fmt.Errorf("MQTT broker URL is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.DevicesConfigPath == "" {
		return fmt.Errorf("devices config path is required")
	}
	return nil
}
