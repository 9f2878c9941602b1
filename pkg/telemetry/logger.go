package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates the root zerolog logger from the logging configuration.
// Component code derives child loggers with the With* helpers so every line
// carries its cluster/component/task context.
func NewLogger(cfg LoggingConfig) (zerolog.Logger, error) {
	var writer io.Writer
	switch cfg.Output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), err
		}
		writer = file
	}

	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).With().Timestamp().Logger()
	return logger.Level(parseLogLevel(cfg.Level)), nil
}

// WithCluster returns a child logger scoped to one cluster.
func WithCluster(log zerolog.Logger, cluster string) zerolog.Logger {
	return log.With().Str("cluster", cluster).Logger()
}

// WithComponent returns a child logger scoped to one component, carrying the
// cluster/kind/name triple used throughout the deployer's output.
func WithComponent(log zerolog.Logger, cluster, kind, name string) zerolog.Logger {
	return log.With().
		Str("cluster", cluster).
		Str("kind", kind).
		Str("component", name).
		Logger()
}

// WithTask returns a child logger scoped to one task.
func WithTask(log zerolog.Logger, task string) zerolog.Logger {
	return log.With().Str("task", task).Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
