package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(component string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// LogEnrichmentFailure records a per-resource analyzer failure. These are
// diagnostics, never fatal to the run.
func (l *Logger) LogEnrichmentFailure(ctx context.Context, analyzer, resourceID string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("analyzer", analyzer).
		Str("resource_id", resourceID).
		Msg("enrichment failed, keeping partial result")
}

// LogSummaryFailure records a failed set-level summary.
func (l *Logger) LogSummaryFailure(ctx context.Context, analyzer string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("analyzer", analyzer).
		Msg("summary generation failed")
}
