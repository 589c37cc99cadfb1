package order

import (
	"errors"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
)

var (
	ErrConflict   = domain.ErrConflict
	ErrNotFound   = domain.ErrNotFound
	ErrValidation = domain.ErrValidation

	// ErrOrderCreationFailed means stock was reserved but the order could not be
	// persisted. The reservation has already been released when this is returned.
	ErrOrderCreationFailed = errors.New("order: creation failed")
)

func fieldError(field, message string) error {
	return &domain.ValidationError{Fields: []domain.FieldError{{Field: field, Message: message}}}
}
