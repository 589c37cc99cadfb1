package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	statsService     = "order-stats"
	useCaseSummarize = "stats.summarize"
)

// OrderSource is the read side the aggregator scans.
type OrderSource interface {
	FindAll(ctx context.Context, filter domain.Filter) ([]*domain.Order, error)
}

// Aggregator computes summaries on demand over persisted orders. It takes no locks.
type Aggregator struct {
	orders OrderSource
	in     application.Instruments
	now    func() time.Time
}

func NewAggregator(orders OrderSource, tel observability.Observability) *Aggregator {
	return &Aggregator{
		orders: orders,
		in:     application.NewInstruments(tel, statsService),
		now:    time.Now,
	}
}

type SummarizeInput struct {
	Filter domain.Filter
	Period Period
}

// Execute adapts Summarize to the application.UseCase shape.
func (a *Aggregator) Execute(ctx context.Context, cmd SummarizeInput) (*Summary, error) {
	return a.Summarize(ctx, cmd.Filter, cmd.Period)
}

func (a *Aggregator) Summarize(ctx context.Context, filter domain.Filter, period Period) (_ *Summary, err error) {
	ctx, exec := a.in.Begin(ctx, useCaseSummarize, "SummarizeOrders", attribute.String("stats.period", string(period)))
	defer func() { exec.End(err) }()

	if _, err := ParsePeriod(string(period)); err != nil {
		exec.Fail("INVALID_PERIOD")
		return nil, err
	}

	orders, err := a.orders.FindAll(ctx, period.Narrow(filter, a.now()))
	if err != nil {
		exec.Fail("REPO_FIND_FAILED")
		return nil, fmt.Errorf("stats: load orders: %w", err)
	}

	s := Summarize(orders)
	exec.Add(
		observability.F("orders", s.TotalOrders),
		observability.F("total_revenue", s.TotalRevenue.StringFixed(2)),
	)
	return &s, nil
}
