package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
)

// ProductRepository keeps the catalog in a map. A single mutex serializes every
// stock change, which makes a batch reserve check-all-then-apply atomic.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*product.Product
	now      func() time.Time
}

func NewProductRepository(seed ...*product.Product) *ProductRepository {
	r := &ProductRepository{
		products: make(map[string]*product.Product, len(seed)),
		now:      time.Now,
	}
	for _, p := range seed {
		r.products[p.ID] = p.Clone()
	}
	return r
}

func (r *ProductRepository) Reserve(ctx context.Context, reqs []product.StockRequest) ([]product.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var missing, short []string
	for _, req := range reqs {
		p, ok := r.products[req.ProductID]
		switch {
		case !ok || !p.Active:
			missing = append(missing, req.ProductID)
		case p.Stock < req.Quantity:
			short = append(short, req.ProductID)
		}
	}
	if len(missing) > 0 {
		return nil, &product.NotFoundError{ProductIDs: missing}
	}
	if len(short) > 0 {
		return nil, &product.InsufficientStockError{ProductIDs: short}
	}

	now := r.now()
	out := make([]product.Reservation, 0, len(reqs))
	for _, req := range reqs {
		p := r.products[req.ProductID]
		p.Stock -= req.Quantity
		p.UpdatedAt = now
		out = append(out, product.ReservationFrom(p, req.Quantity))
	}
	return out, nil
}

func (r *ProductRepository) Release(ctx context.Context, reqs []product.StockRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []string
	for _, req := range reqs {
		if _, ok := r.products[req.ProductID]; !ok {
			missing = append(missing, req.ProductID)
		}
	}
	if len(missing) > 0 {
		return &product.NotFoundError{ProductIDs: missing}
	}

	now := r.now()
	for _, req := range reqs {
		p := r.products[req.ProductID]
		p.Stock += req.Quantity
		p.UpdatedAt = now
	}
	return nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*product.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*product.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

func (r *ProductRepository) Save(ctx context.Context, p *product.Product) error {
	_ = ctx
	if p == nil {
		return nil
	}
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[p.ID] = p.Clone()
	return nil
}
