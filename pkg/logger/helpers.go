package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs API request information
func LogRequest(log Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":   method,
		"url":      url,
		"status":   statusCode,
		"duration": duration,
	}

	switch {
	case statusCode >= 500:
		log.ErrorWithFields("API request server error", fields)
	case statusCode >= 400:
		log.WarnWithFields("API request client error", fields)
	default:
		log.DebugWithFields("API request completed", fields)
	}
}

// LogQuotaWait logs that an endpoint ran out of quota and the caller is parked until resetAt
func LogQuotaWait(log Logger, endpoint string, wait time.Duration, resetAt time.Time) {
	log.InfoWithFields("Endpoint quota exhausted, waiting for reset", map[string]interface{}{
		"endpoint": endpoint,
		"wait":     wait,
		"reset_at": resetAt.Format(time.RFC3339),
		"action":   "quota_wait",
	})
}

// LogPluginRun logs a finished plugin invocation
func LogPluginRun(log Logger, plugin string, handles, edges, nodes int, err error) {
	fields := map[string]interface{}{
		"plugin":  plugin,
		"handles": handles,
		"edges":   edges,
		"nodes":   nodes,
	}
	if err != nil {
		log.WithError(err).ErrorWithFields("Plugin run failed", fields)
		return
	}
	log.InfoWithFields("Plugin run completed", fields)
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
