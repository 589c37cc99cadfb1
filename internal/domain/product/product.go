package product

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("product: not found")
	ErrInvalidQuantity   = errors.New("product: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("product: insufficient stock")
	ErrInvalidProduct    = errors.New("product: invalid product")
)

var hundred = decimal.NewFromInt(100)

// Product is the catalog entry the inventory ledger reserves stock against.
type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	Stock           int             `json:"stock"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Active          bool            `json:"active"`
	Featured        bool            `json:"featured"`
	Category        string          `json:"category,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Validate checks the catalog invariants: price ≥ 0, stock ≥ 0, discount within [0, 100].
func (p *Product) Validate() error {
	var problems []string
	if strings.TrimSpace(p.ID) == "" {
		problems = append(problems, "id is required")
	}
	if p.Price.IsNegative() {
		problems = append(problems, "price must be zero or greater")
	}
	if p.Stock < 0 {
		problems = append(problems, "stock must be zero or greater")
	}
	if p.DiscountPercent.IsNegative() || p.DiscountPercent.GreaterThan(hundred) {
		problems = append(problems, "discount must be between 0 and 100")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(problems, "; "))
	}
	return nil
}

// DiscountedPrice is price × (1 − discount/100), rounded to cents.
func (p *Product) DiscountedPrice() decimal.Decimal {
	return ApplyDiscount(p.Price, p.DiscountPercent)
}

// Clone returns a deep copy.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = slices.Clone(p.Tags)
	return &c
}

// ApplyDiscount reduces amount by percent and rounds to cents.
func ApplyDiscount(amount, percent decimal.Decimal) decimal.Decimal {
	factor := hundred.Sub(percent).Div(hundred)
	return amount.Mul(factor).Round(2)
}

// StockRequest asks the ledger for Quantity units of ProductID.
type StockRequest struct {
	ProductID string
	Quantity  int
}

// Reservation is what a successful reserve hands back: the catalog state at that moment.
type Reservation struct {
	ProductID       string
	Name            string
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// ReservationFrom snapshots p for a reservation of qty units.
func ReservationFrom(p *Product, qty int) Reservation {
	return Reservation{
		ProductID:       p.ID,
		Name:            p.Name,
		Quantity:        qty,
		UnitPrice:       p.Price,
		DiscountPercent: p.DiscountPercent,
	}
}

// InsufficientStockError names every product whose stock could not cover the request.
type InsufficientStockError struct {
	ProductIDs []string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInsufficientStock.Error(), strings.Join(e.ProductIDs, ", "))
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// NotFoundError names the product references that do not resolve.
type NotFoundError struct {
	ProductIDs []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotFound.Error(), strings.Join(e.ProductIDs, ", "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
