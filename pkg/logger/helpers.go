package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRateLimitWait records that a fetch loop is about to sleep for its
// endpoint class budget to reset.
func LogRateLimitWait(l Logger, class string, remaining int, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"endpoint_class": class,
		"remaining":      remaining,
		"wait":           wait,
		"action":         "rate_limited",
	}).Warn("Rate limit budget exhausted, sleeping until reset")
}

// LogPhaseStart logs when a pipeline phase begins
func LogPhaseStart(l Logger, phase string, fields map[string]interface{}) {
	l.WithField("phase", phase).InfoWithFields("Phase started", fields)
}

// LogPhaseSkipped logs a disabled phase
func LogPhaseSkipped(l Logger, phase, reason string) {
	l.WithFields(map[string]interface{}{
		"phase":  phase,
		"reason": reason,
	}).Info("Phase skipped")
}

// LogPhaseDone logs when a pipeline phase finishes
func LogPhaseDone(l Logger, phase string, elapsed time.Duration, fields map[string]interface{}) {
	l.WithFields(map[string]interface{}{
		"phase":   phase,
		"elapsed": elapsed,
	}).InfoWithFields("Phase completed", fields)
}

// LogProgress logs a percent-complete step for a phase
func LogProgress(l Logger, phase string, processed, total, percent int) {
	l.WithFields(map[string]interface{}{
		"phase":     phase,
		"processed": processed,
		"total":     total,
		"percent":   percent,
	}).Info("Progress")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
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
