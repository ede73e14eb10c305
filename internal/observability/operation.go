package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
)

const tracerName = "github.com/Homlet/middleware-android-sub001"

// Operation times one middleware operation (map, discover, recovery, force)
// under a span, a scoped logger and the operation meters.
type Operation struct {
	ctx     context.Context
	span    trace.Span
	metrics *Metrics
	name    string
	start   time.Time
	logger  *slog.Logger
}

// StartOperation opens a span named name. attrs are set on the span and
// repeated on the operation logger.
func StartOperation(ctx context.Context, m *Metrics, name string, attrs ...attribute.KeyValue) (*Operation, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))

	args := make([]any, 0, 1+len(attrs))
	args = append(args, slog.String("operation", name))
	for _, kv := range attrs {
		args = append(args, slog.Any(string(kv.Key), kv.Value.AsInterface()))
	}
	logger := slog.Default().With(args...)
	logger.DebugContext(ctx, "operation started")

	return &Operation{
		ctx:     ctx,
		span:    span,
		metrics: m,
		name:    name,
		start:   time.Now(),
		logger:  logger,
	}, ctx
}

// Logger returns the operation-scoped logger.
func (o *Operation) Logger() *slog.Logger { return o.logger }

// End records duration and outcome. A failure is also counted under its
// error kind.
func (o *Operation) End(err error) {
	duration := time.Since(o.start)
	status := "ok"
	if err != nil {
		status = "error"
		kind := mwerrors.Kind(err)
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		o.span.SetAttributes(attribute.String("error.kind", kind))
		o.logger.WarnContext(o.ctx, "operation failed", "error", err, "kind", kind, "duration", duration)
		o.metrics.Error(o.name, kind)
	} else {
		o.logger.DebugContext(o.ctx, "operation completed", "duration", duration)
	}
	o.span.End()

	if o.metrics == nil {
		return
	}
	o.metrics.OperationDuration.WithLabelValues(o.name, status).Observe(duration.Seconds())
	o.metrics.OperationTotal.WithLabelValues(o.name, status).Inc()
}
