package product

import "context"

// StockRepository is the atomic stock primitive behind the inventory ledger.
// Reserve must be all-or-nothing across the batch: on *InsufficientStockError or
// *NotFoundError no product is left mutated. Requests carry distinct product ids.
type StockRepository interface {
	Reserve(ctx context.Context, reqs []StockRequest) ([]Reservation, error)
	Release(ctx context.Context, reqs []StockRequest) error
}

// Catalog is the read/write side of the product store used for seeding and enrichment.
type Catalog interface {
	Get(ctx context.Context, id string) (*Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*Product, error)
	Save(ctx context.Context, p *Product) error
}

type Repository interface {
	StockRepository
	Catalog
}
