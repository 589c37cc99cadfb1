package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
)

type OrderRepository struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	byNumber map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:   make(map[string]*domain.Order),
		byNumber: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("%w: id %s", domain.ErrConflict, order.ID)
	}
	if _, exists := r.byNumber[order.OrderNumber]; exists {
		return fmt.Errorf("%w: order number %s", domain.ErrConflict, order.OrderNumber)
	}

	order.Version = 1
	r.orders[order.ID] = order.Clone()
	r.byNumber[order.OrderNumber] = order.ID
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return order.Clone(), nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.orders[order.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if stored.Version != order.Version {
		return fmt.Errorf("%w: version %d is stale", domain.ErrConflict, order.Version)
	}

	order.Version++
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.byNumber, stored.OrderNumber)
	delete(r.orders, id)
	return nil
}

func (r *OrderRepository) Find(ctx context.Context, filter domain.Filter, page domain.Page) ([]*domain.Order, int64, error) {
	all, err := r.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	domain.Sort(all, page.SortBy, page.Desc)

	total := int64(len(all))
	start := min(max(page.Offset, 0), len(all))
	end := len(all)
	if page.Limit > 0 {
		end = min(start+page.Limit, len(all))
	}
	return all[start:end], total, nil
}

func (r *OrderRepository) FindAll(ctx context.Context, filter domain.Filter) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.Matches(o) {
			out = append(out, o.Clone())
		}
	}
	domain.Sort(out, domain.SortCreatedAt, false)
	return out, nil
}
