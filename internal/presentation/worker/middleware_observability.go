package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "use_case", "event").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string, // keep this low-cardinality: event name, queue, etc.
) context.Context {
	if base == nil && tel != nil {
		base = tel.Logger()
	}
	if base == nil {
		base = observability.NopLogger()
	}

	if attrs == nil {
		attrs = make(map[string]string)
	}

	fields := make([]observability.Field, 0, 6)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// EventHandler wraps an outbox handler with its own span and an event-scoped logger.
func EventHandler(tel observability.Observability, consumer string, h domoutbox.Handler) domoutbox.Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return func(ctx context.Context, e domoutbox.Event) error {
		ctx, span := tel.Tracer().Start(ctx, "Event."+e.EventName(),
			attribute.String("event", e.EventName()),
			attribute.String("consumer", consumer),
		)
		defer span.End()

		attrs := map[string]string{"consumer": consumer}
		base := logctx.From(ctx)
		if base == nil {
			attrs["event"] = e.EventName()
		}
		sc := span.SpanContext()
		ctx = WithEventContext(ctx, base, tel, sc.TraceID(), sc.SpanID(), attrs)
		err := h(ctx, e)
		if err != nil {
			span.RecordError(err)
		}
		return err
	}
}
