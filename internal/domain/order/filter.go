package order

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Filter selects orders for listing and statistics. Zero values mean "no constraint".
type Filter struct {
	Status          Status
	PaymentStatus   PaymentStatus
	Priority        Priority
	CustomerID      string
	DateFrom        *time.Time
	DateTo          *time.Time
	MinAmount       *decimal.Decimal
	MaxAmount       *decimal.Decimal
	City            string
	Search          string
	IncludeInactive bool
}

// Matches is the reference semantics every repository must reproduce.
func (f Filter) Matches(o *Order) bool {
	if o == nil {
		return false
	}
	if !f.IncludeInactive && !o.Active {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.Priority != "" && o.Priority != f.Priority {
		return false
	}
	if f.CustomerID != "" && o.CustomerID != f.CustomerID {
		return false
	}
	if f.DateFrom != nil && o.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && o.CreatedAt.After(*f.DateTo) {
		return false
	}
	if f.MinAmount != nil && o.TotalAmount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && o.TotalAmount.GreaterThan(*f.MaxAmount) {
		return false
	}
	if f.City != "" && !strings.EqualFold(o.ShippingAddress.City, f.City) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		return slices.ContainsFunc(SearchableFields(o), func(s string) bool {
			return strings.Contains(strings.ToLower(s), q)
		})
	}
	return true
}

// SearchableFields are the texts free-text search looks at.
func SearchableFields(o *Order) []string {
	return []string{
		o.OrderNumber,
		o.ShippingAddress.Name,
		o.ShippingAddress.Phone,
		o.Notes.Customer,
		o.Notes.Admin,
	}
}

type SortField string

const (
	SortCreatedAt   SortField = "createdAt"
	SortTotalAmount SortField = "totalAmount"
	SortOrderNumber SortField = "orderNumber"
	SortStatus      SortField = "status"
	SortPriority    SortField = "priority"
)

func (s SortField) Valid() bool {
	switch s {
	case SortCreatedAt, SortTotalAmount, SortOrderNumber, SortStatus, SortPriority:
		return true
	}
	return false
}

// Page selects a window of a sorted result.
type Page struct {
	Offset int
	Limit  int
	SortBy SortField
	Desc   bool
}

// Sort orders in place by field, falling back to ID so equal keys stay deterministic.
func Sort(orders []*Order, field SortField, desc bool) {
	slices.SortStableFunc(orders, func(a, b *Order) int {
		var c int
		switch field {
		case SortTotalAmount:
			c = a.TotalAmount.Cmp(b.TotalAmount)
		case SortOrderNumber:
			c = cmp.Compare(a.OrderNumber, b.OrderNumber)
		case SortStatus:
			c = cmp.Compare(a.Status, b.Status)
		case SortPriority:
			c = cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
}
