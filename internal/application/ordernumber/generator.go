package ordernumber

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	generatorService = "order-number"
	useCaseNext      = "ordernumber.next"
	counterPeer      = "sequence_store"

	prefix      = "ORD"
	scopeLayout = "20060102"
	maxSequence = 9999
)

// Counter is an atomic per-scope sequence. Next increments the scope's value and
// returns it; the first call for a scope returns 1.
type Counter interface {
	Next(ctx context.Context, scope string) (int64, error)
}

// GenerationError reports that no order number could be assigned. Callers retry
// the whole order creation, never just the number.
type GenerationError struct {
	Scope string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("ordernumber: generate for %s: %v", e.Scope, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator hands out ORD-YYYYMMDD-NNNN numbers from a day-scoped counter.
type Generator struct {
	counter      Counter
	in           application.Instruments
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewGenerator(counter Counter, tel observability.Observability) *Generator {
	in := application.NewInstruments(tel, generatorService)
	return &Generator{
		counter:      counter,
		in:           in,
		extCounter:   in.Metrics.Counter(observability.MExternalRequests),
		extHistogram: in.Metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Next returns the next number for the calendar day of date, read in date's own location.
func (g *Generator) Next(ctx context.Context, date time.Time) (_ string, err error) {
	scope := Scope(date)
	ctx, exec := g.in.Begin(ctx, useCaseNext, "NextOrderNumber", attribute.String("order_number.scope", scope))
	defer func() { exec.End(err) }()

	start := time.Now()
	seq, err := g.counter.Next(ctx, scope)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	g.extCounter.Add(1,
		observability.L("peer", counterPeer),
		observability.L("endpoint", "sequence.next"),
		observability.L("outcome", outcome),
	)
	g.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", counterPeer),
		observability.L("endpoint", "sequence.next"),
	)

	if err != nil {
		exec.Fail("COUNTER_FAILED")
		return "", &GenerationError{Scope: scope, Err: err}
	}
	if seq < 1 || seq > maxSequence {
		exec.Fail("SEQUENCE_EXHAUSTED")
		return "", &GenerationError{Scope: scope, Err: fmt.Errorf("sequence value %d outside 1..%d", seq, maxSequence)}
	}

	number := Format(date, seq)
	exec.Add(observability.F("order_number", number))
	return number, nil
}

// Scope is the counter key for the calendar day of t.
func Scope(t time.Time) string {
	return t.Format(scopeLayout)
}

// Format renders an order number for the given day and sequence value.
func Format(date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, Scope(date), seq)
}
