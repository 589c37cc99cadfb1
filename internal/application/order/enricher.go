package order

import (
	"context"
	"slices"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/customer"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"
)

type ProductLookup interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*product.Product, error)
}

type CustomerLookup interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]customer.Customer, error)
}

// ProductInfo is the current catalog view of a line's product, next to the snapshot.
type ProductInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	DiscountPercent string `json:"discountPercent"`
	Stock           int    `json:"stock"`
	Active          bool   `json:"active"`
}

// EnrichedOrder is an order joined with its customer and the products it references.
// Unresolved references are left nil.
type EnrichedOrder struct {
	*domain.Order
	Customer *customer.Customer     `json:"customerInfo,omitempty"`
	Products map[string]ProductInfo `json:"products,omitempty"`
}

// Enricher performs the read-time join in one lookup per collaborator, whatever the batch size.
type Enricher struct {
	products  ProductLookup
	customers CustomerLookup
	log       observability.Logger
}

func NewEnricher(products ProductLookup, customers CustomerLookup, tel observability.Observability) *Enricher {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Enricher{
		products:  products,
		customers: customers,
		log:       tel.Logger().With(observability.F("component", "order_enricher")),
	}
}

// Enrich never fails: lookup errors are logged and the affected references stay empty.
func (e *Enricher) Enrich(ctx context.Context, orders []*domain.Order) []EnrichedOrder {
	logger := logctx.FromOr(ctx, e.log)

	var customerIDs, productIDs []string
	for _, o := range orders {
		if o.CustomerID != "" && !slices.Contains(customerIDs, o.CustomerID) {
			customerIDs = append(customerIDs, o.CustomerID)
		}
		for _, li := range o.Items {
			if !slices.Contains(productIDs, li.ProductID) {
				productIDs = append(productIDs, li.ProductID)
			}
		}
	}

	var customers map[string]customer.Customer
	if e.customers != nil && len(customerIDs) > 0 {
		found, err := e.customers.FindByIDs(ctx, customerIDs)
		if err != nil {
			logger.Warn("customer_lookup_failed", observability.F("error", err))
		}
		customers = found
	}

	var products map[string]*product.Product
	if e.products != nil && len(productIDs) > 0 {
		found, err := e.products.FindByIDs(ctx, productIDs)
		if err != nil {
			logger.Warn("product_lookup_failed", observability.F("error", err))
		}
		products = found
	}

	out := make([]EnrichedOrder, 0, len(orders))
	for _, o := range orders {
		eo := EnrichedOrder{Order: o}
		if c, ok := customers[o.CustomerID]; ok {
			eo.Customer = &c
		}
		for _, li := range o.Items {
			p, ok := products[li.ProductID]
			if !ok || p == nil {
				continue
			}
			if eo.Products == nil {
				eo.Products = make(map[string]ProductInfo)
			}
			eo.Products[p.ID] = ProductInfo{
				ID:              p.ID,
				Name:            p.Name,
				Price:           p.Price.StringFixed(2),
				DiscountPercent: p.DiscountPercent.String(),
				Stock:           p.Stock,
				Active:          p.Active,
			}
		}
		out = append(out, eo)
	}
	return out
}
