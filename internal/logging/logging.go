package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/unrepo/devportal/internal/config"
)

// Setup initializes the global logger based on configuration
func Setup(cfg *config.LoggingConfig, env string) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer
	if cfg.Format == "json" || env == "production" {
		output = os.Stdout
	} else {
		// Pretty console output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "unrepo-portal").
		Logger()
}

// NewLogger creates a new logger with additional context
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// RequestLogger is a Gin middleware for structured request logging
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		requestID := c.GetString("request_id")

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Warn()
		}

		// The query string carries the identity email, so only its presence is logged
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", path).
			Bool("has_query", c.Request.URL.RawQuery != "").
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP request")
	}
}

// BackendCallLogEntry represents a structured log entry for a call to the unrepo backend
type BackendCallLogEntry struct {
	Operation string
	Method    string
	Path      string
	Status    int
	Latency   time.Duration
	Err       error
}

// LogBackendCall logs a backend call with structured data
func LogBackendCall(entry *BackendCallLogEntry) {
	event := log.Debug()
	if entry.Err != nil {
		event = log.Warn().Err(entry.Err)
	}

	event.
		Str("operation", entry.Operation).
		Str("method", entry.Method).
		Str("path", entry.Path).
		Int("status", entry.Status).
		Dur("latency", entry.Latency).
		Msg("Backend call")
}

// LogKeyEvent logs an API key lifecycle event (generated, existing, deleted)
func LogKeyEvent(event, identity, keyType, keyID string) {
	log.Info().
		Str("event", event).
		Str("identity", identity).
		Str("key_type", keyType).
		Str("key_id", keyID).
		Msg("API key event")
}

// LogSecurityEvent logs security-related events
func LogSecurityEvent(eventType, identity, clientIP, details string) {
	log.Warn().
		Str("event_type", eventType).
		Str("identity", identity).
		Str("client_ip", clientIP).
		Str("details", details).
		Msg("Security event")
}

// LogError logs an error with context
func LogError(err error, requestID, component, operation string) {
	log.Error().
		Err(err).
		Str("request_id", requestID).
		Str("component", component).
		Str("operation", operation).
		Msg("Error occurred")
}

// SanitizeForLog truncates long strings for logging
func SanitizeForLog(data string, maxLen int) string {
	if len(data) > maxLen {
		return data[:maxLen] + "...[truncated]"
	}
	return data
}

// SanitizeSecret keeps a short recognisable prefix of an API key and hides the rest
func SanitizeSecret(secret string) string {
	const visible = 8
	if len(secret) <= visible {
		return strings.Repeat("*", len(secret))
	}
	return secret[:visible] + "...[redacted]"
}
