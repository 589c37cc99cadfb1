package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/customer"
)

type CustomerDirectory struct {
	mu        sync.RWMutex
	customers map[string]customer.Customer
}

func NewCustomerDirectory(seed ...customer.Customer) *CustomerDirectory {
	d := &CustomerDirectory{customers: make(map[string]customer.Customer, len(seed))}
	for _, c := range seed {
		d.customers[c.ID] = c
	}
	return d
}

func (d *CustomerDirectory) FindByIDs(ctx context.Context, ids []string) (map[string]customer.Customer, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]customer.Customer, len(ids))
	for _, id := range ids {
		if c, ok := d.customers[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}
