package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "UC."

// Instruments bundles the logger, tracer and RED metrics a use case records into.
type Instruments struct {
	Log          observability.Logger
	Tracer       observability.Tracer
	Metrics      observability.Metrics
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

// NewInstruments resolves instruments from tel, falling back to no-ops when tel is nil.
func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return Instruments{
		Log:          tel.Logger().With(observability.F("service", service)),
		Tracer:       tel.Tracer(),
		Metrics:      metrics,
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

// Execution tracks a single use case run from Begin to End.
type Execution struct {
	useCase string
	span    trace.Span
	start   time.Time
	log     observability.Logger
	in      Instruments
	fields  []observability.Field

	outcome string
	status  string
}

// Begin opens the use case span and derives the run logger from the request-scoped one.
// The context logger itself is left untouched so nested use cases do not inherit use_case.
func (in Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Execution) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.Tracer.Start(ctx, spanPrefix+spanName, attrs...)

	logger := logctx.FromOr(ctx, in.Log).With(observability.F("use_case", useCase))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	return ctx, &Execution{
		useCase: useCase,
		span:    span,
		start:   time.Now(),
		log:     logger,
		in:      in,
		outcome: "success",
		status:  "OK",
	}
}

// Logger is the request-scoped logger for this run.
func (e *Execution) Logger() observability.Logger { return e.log }

// Span is the use case span.
func (e *Execution) Span() trace.Span { return e.span }

// Fail marks the run as failed with a machine-readable status such as "REPO_INSERT_FAILED".
func (e *Execution) Fail(status string) {
	e.outcome, e.status = "error", status
}

// SetStatus overrides the status text without changing the outcome.
func (e *Execution) SetStatus(status string) {
	e.status = status
}

// Add appends fields to the final use_case_done line.
func (e *Execution) Add(fields ...observability.Field) {
	e.fields = append(e.fields, fields...)
}

// End closes the span, records RED metrics and writes the use_case_done line.
func (e *Execution) End(err error) {
	if err != nil && e.outcome != "error" {
		e.Fail("ERROR")
	}
	lat := time.Since(e.start).Seconds()

	if e.span != nil {
		if err != nil {
			e.span.RecordError(err)
			e.span.SetStatus(codes.Error, e.status)
		} else {
			e.span.SetStatus(codes.Ok, e.status)
		}
		e.span.End()
	}

	e.in.reqCounter.Add(1,
		observability.L("use_case", e.useCase),
		observability.L("outcome", e.outcome),
	)
	e.in.durHistogram.Observe(lat,
		observability.L("use_case", e.useCase),
	)

	fields := append([]observability.Field{
		observability.F("outcome", e.outcome),
		observability.F("status", e.status),
		observability.F("latency_seconds", lat),
	}, e.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	e.log.Info("use_case_done", fields...)
}
