package customer

import "context"

// Customer is the identity an order is attributed to. This service never mutates it.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Directory resolves customer references. Unknown ids are simply absent from the result.
type Directory interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]Customer, error)
}
