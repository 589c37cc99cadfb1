package order

import "context"

type Repository interface {
	// Insert fails with ErrConflict when the id or the orderNumber already exists.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// Update succeeds only if the stored Version equals order.Version; it then bumps order.Version.
	Update(ctx context.Context, order *Order) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, filter Filter, page Page) ([]*Order, int64, error)
	FindAll(ctx context.Context, filter Filter) ([]*Order, error)
}
