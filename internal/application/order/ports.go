package order

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
)

type IDGenerator interface {
	NewID() string
}

// StockLedger is the inventory side of checkout and cancellation.
type StockLedger interface {
	Reserve(ctx context.Context, reqs []product.StockRequest) ([]product.Reservation, error)
	Release(ctx context.Context, reqs []product.StockRequest) error
}

// NumberGenerator assigns human-readable order numbers for a calendar day.
type NumberGenerator interface {
	Next(ctx context.Context, date time.Time) (string, error)
}
