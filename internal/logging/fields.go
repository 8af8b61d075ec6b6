package logging

import "go.uber.org/zap"

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for queue job identifiers.
	FieldJobID = "job_id"
	// FieldBatchID is the standardized structured logging key for submission batches.
	FieldBatchID = "batch_id"
	// FieldRunID is the standardized structured logging key for drain runs.
	FieldRunID = "run_id"
	// FieldStep is the standardized structured logging key for driver steps.
	FieldStep = "step"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType is a stable machine-readable name for the logged event.
	FieldEventType = "event_type"
	// FieldErrorHint tells operators what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// WarnWithContext logs a warning with enforced event_type, error_hint, and
// impact fields. Defaults are injected when the caller omitted them.
func WarnWithContext(logger *zap.Logger, msg, eventType string, fields ...zap.Field) {
	if logger == nil {
		return
	}
	if !hasField(fields, FieldEventType) {
		fields = append(fields, zap.String(FieldEventType, eventType))
	}
	if !hasField(fields, FieldErrorHint) {
		fields = append(fields, zap.String(FieldErrorHint, "check logs for details"))
	}
	if !hasField(fields, FieldImpact) {
		fields = append(fields, zap.String(FieldImpact, "operation completed with warnings"))
	}
	logger.Warn(msg, fields...)
}

// ErrorWithContext logs an error with enforced event_type and error_hint fields.
func ErrorWithContext(logger *zap.Logger, msg, eventType string, fields ...zap.Field) {
	if logger == nil {
		return
	}
	if !hasField(fields, FieldEventType) {
		fields = append(fields, zap.String(FieldEventType, eventType))
	}
	if !hasField(fields, FieldErrorHint) {
		fields = append(fields, zap.String(FieldErrorHint, "check logs for details"))
	}
	logger.Error(msg, fields...)
}

func hasField(fields []zap.Field, key string) bool {
	for _, f := range fields {
		if f.Key == key {
			return true
		}
	}
	return false
}
