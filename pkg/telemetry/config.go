// Package telemetry provides the observability stack of the deployer:
// structured logging via zerolog, Prometheus metrics, OpenTelemetry tracing
// and an in-process execution event bus.
package telemetry

import (
	"fmt"
	"time"
)

// Config gathers the telemetry settings for one deployer process.
type Config struct {
	// ServiceName identifies the process in traces and metrics.
	ServiceName string

	// ServiceVersion is the build version.
	ServiceVersion string

	// Logging configures structured logging.
	Logging LoggingConfig

	// Tracing configures span export.
	Tracing TracingConfig

	// Metrics configures Prometheus collection.
	Metrics MetricsConfig

	// Events configures the execution event bus.
	Events EventsConfig
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	Level string

	// Format selects console or json output.
	Format string

	// Output is stdout, stderr or a file path.
	Output string
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	Enabled bool

	// Exporter is one of stdout, otlp or none.
	Exporter string

	// Endpoint is the OTLP collector endpoint.
	Endpoint string

	// Insecure disables TLS for the OTLP connection.
	Insecure bool
}

// MetricsConfig configures Prometheus collection.
type MetricsConfig struct {
	// Enabled controls whether collectors are registered.
	Enabled bool

	// ListenAddress, when set, serves /metrics over HTTP.
	ListenAddress string

	// Namespace prefixes every metric name.
	Namespace string
}

// EventsConfig configures the execution event bus.
type EventsConfig struct {
	// Enabled controls whether events are delivered.
	Enabled bool

	// BufferSize bounds the async delivery queue.
	BufferSize int

	// FlushTimeout bounds how long Close waits for pending events.
	FlushTimeout time.Duration
}

// DefaultConfig returns the standard telemetry settings.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "k8deployer",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "none",
			Insecure: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "k8deployer",
		},
		Events: EventsConfig{
			Enabled:      true,
			BufferSize:   256,
			FlushTimeout: 2 * time.Second,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("telemetry: service name is required")
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry: invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("telemetry: invalid log format: %s", c.Logging.Format)
	}

	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("telemetry: invalid trace exporter: %s", c.Tracing.Exporter)
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return fmt.Errorf("telemetry: event buffer size must be positive, got: %d", c.Events.BufferSize)
	}

	return nil
}
