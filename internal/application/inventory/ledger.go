package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	inventoryService = "inventory-ledger"
	useCaseReserve   = "inventory.reserve"
	useCaseRelease   = "inventory.release"
	storePeer        = "stock_store"
)

var ErrEmptyBatch = errors.New("inventory: no items to reserve")

// Ledger reserves and releases stock for whole checkouts. A reserve either takes
// every requested unit or none of them.
type Ledger struct {
	repo         product.StockRepository
	in           application.Instruments
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewLedger(repo product.StockRepository, tel observability.Observability) *Ledger {
	in := application.NewInstruments(tel, inventoryService)
	return &Ledger{
		repo:         repo,
		in:           in,
		extCounter:   in.Metrics.Counter(observability.MExternalRequests),
		extHistogram: in.Metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Reserve decrements stock for every request and returns the catalog price of each
// product at that moment. Duplicate product ids are merged before reserving.
func (l *Ledger) Reserve(ctx context.Context, reqs []product.StockRequest) (_ []product.Reservation, err error) {
	ctx, exec := l.in.Begin(ctx, useCaseReserve, "ReserveStock", attribute.Int("inventory.lines", len(reqs)))
	defer func() { exec.End(err) }()

	batch, err := Coalesce(reqs)
	if err != nil {
		exec.Fail("INVALID_BATCH")
		return nil, err
	}

	reservations, err := l.call(ctx, "stock.reserve", func(ctx context.Context) ([]product.Reservation, error) {
		return l.repo.Reserve(ctx, batch)
	})
	if err != nil {
		var short *product.InsufficientStockError
		switch {
		case errors.As(err, &short):
			exec.Fail("INSUFFICIENT_STOCK")
			exec.Add(observability.F("short_products", short.ProductIDs))
		case errors.Is(err, product.ErrNotFound):
			exec.Fail("PRODUCT_NOT_FOUND")
		default:
			exec.Fail("RESERVE_FAILED")
		}
		return nil, fmt.Errorf("inventory: reserve: %w", err)
	}

	exec.Add(observability.F("products", len(batch)))
	exec.Span().AddEvent("inventory.reserved", trace.WithAttributes(attribute.Int("inventory.products", len(batch))))
	return reservations, nil
}

// Release returns stock taken by an earlier reservation.
func (l *Ledger) Release(ctx context.Context, reqs []product.StockRequest) (err error) {
	ctx, exec := l.in.Begin(ctx, useCaseRelease, "ReleaseStock", attribute.Int("inventory.lines", len(reqs)))
	defer func() { exec.End(err) }()

	batch, err := Coalesce(reqs)
	if err != nil {
		exec.Fail("INVALID_BATCH")
		return err
	}

	_, err = l.call(ctx, "stock.release", func(ctx context.Context) ([]product.Reservation, error) {
		return nil, l.repo.Release(ctx, batch)
	})
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			exec.Fail("PRODUCT_NOT_FOUND")
		} else {
			exec.Fail("RELEASE_FAILED")
		}
		return fmt.Errorf("inventory: release: %w", err)
	}
	exec.Add(observability.F("products", len(batch)))
	return nil
}

func (l *Ledger) call(ctx context.Context, endpoint string, fn func(context.Context) ([]product.Reservation, error)) ([]product.Reservation, error) {
	start := time.Now()
	res, err := fn(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	l.extCounter.Add(1,
		observability.L("peer", storePeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	l.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", storePeer),
		observability.L("endpoint", endpoint),
	)
	return res, err
}

// Coalesce validates a batch and merges lines that share a product, keeping first-seen order.
func Coalesce(reqs []product.StockRequest) ([]product.StockRequest, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}
	index := make(map[string]int, len(reqs))
	out := make([]product.StockRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.ProductID == "" {
			return nil, fmt.Errorf("%w: product id is required", product.ErrNotFound)
		}
		if r.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", product.ErrInvalidQuantity, r.ProductID)
		}
		if i, ok := index[r.ProductID]; ok {
			out[i].Quantity += r.Quantity
			continue
		}
		index[r.ProductID] = len(out)
		out = append(out, r)
	}
	return out, nil
}
