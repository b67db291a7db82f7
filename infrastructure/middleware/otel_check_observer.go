package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/pbcheck/internal/domain"
)

var _ CheckObserver = (*OTelCheckObserver)(nil)

// OTelCheckObserver traces check execution with OpenTelemetry. Each check
// gets a span that records the findings it added as events, grouped by
// severity, and marks check failures as errors. The span travels in the
// context, so the observer itself is stateless.
type OTelCheckObserver struct {
	tracer trace.Tracer
}

// NewOTelCheckObserver creates an observer using the global tracer
// provider, or tp when given.
func NewOTelCheckObserver(tp trace.TracerProvider) *OTelCheckObserver {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OTelCheckObserver{tracer: tp.Tracer("pbcheck/middleware")}
}

// PreCheck implements the CheckObserver interface. It starts the check's
// span.
func (o *OTelCheckObserver) PreCheck(ctx context.Context, check string) context.Context {
	ctx, _ = o.tracer.Start(ctx, "CheckInstrumentation.Execute",
		trace.WithAttributes(attribute.String("check.name", check)))
	return ctx
}

// PostCheck implements the CheckObserver interface. It finalizes the span
// started by PreCheck.
func (o *OTelCheckObserver) PostCheck(
	ctx context.Context,
	check string,
	added []domain.Finding,
	elapsed time.Duration,
	err error,
) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(
		attribute.Int64("check.elapsed_us", elapsed.Microseconds()),
		attribute.Int("check.findings", len(added)),
	)

	if err != nil {
		span.AddEvent("check.failed", trace.WithAttributes(
			attribute.String("check.name", check),
			attribute.Bool("check.canceled", errors.Is(err, context.Canceled)),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	var defects, infos, fatal int
	for _, f := range added {
		switch f.Severity() {
		case domain.SeverityInfo:
			infos++
		case domain.SeverityFatal:
			fatal++
		default:
			defects++
		}
		span.AddEvent("check.finding", trace.WithAttributes(
			attribute.String("finding.kind", string(f.Kind)),
			attribute.String("finding.severity", f.Severity().String()),
		))
	}
	span.SetAttributes(
		attribute.Int("check.defects", defects),
		attribute.Int("check.infos", infos),
		attribute.Int("check.fatal", fatal),
	)
	span.SetStatus(codes.Ok, "")
}
