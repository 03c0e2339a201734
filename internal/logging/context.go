package logging

import (
	"context"
	"log/slog"

	"openbuckets/internal/services"
)

// Standard structured logging keys.
const (
	FieldComponent = "component"
	FieldDropID    = "drop_id"
	FieldStage     = "stage"
	FieldWatchDir  = "watch_dir"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
)

// ContextFields converts the drop annotations on ctx into slog attributes,
// skipping any that are unset.
func ContextFields(ctx context.Context) []slog.Attr {
	a := services.AnnotationsFrom(ctx)
	pairs := [...][2]string{
		{FieldDropID, a.DropID},
		{FieldStage, a.Stage},
		{FieldWatchDir, a.WatchDir},
	}
	var fields []slog.Attr
	for _, p := range pairs {
		if p[1] != "" {
			fields = append(fields, slog.String(p[0], p[1]))
		}
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
