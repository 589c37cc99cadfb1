package main

import (
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/shopspring/decimal"
)

// demoProducts is the catalog the in-memory mode starts with.
func demoProducts() []*product.Product {
	now := time.Now().UTC()
	mk := func(id, name, price, discount string, stock int, category string) *product.Product {
		return &product.Product{
			ID:              id,
			Name:            name,
			Price:           decimal.RequireFromString(price),
			DiscountPercent: decimal.RequireFromString(discount),
			Stock:           stock,
			Active:          true,
			Category:        category,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	return []*product.Product{
		mk("sku-mug", "Ceramic Mug", "12.50", "0", 100, "kitchen"),
		mk("sku-pen", "Fountain Pen", "45.00", "10", 25, "stationery"),
		mk("sku-notebook", "A5 Notebook", "8.90", "0", 200, "stationery"),
		mk("sku-lamp", "Desk Lamp", "39.99", "15", 10, "home"),
		mk("sku-poster", "Limited Poster", "99.00", "0", 1, "art"),
	}
}

func demoCustomers() []customer.Customer {
	return []customer.Customer{
		{ID: "cust-1", Name: "Ada Lovelace", Email: "ada@example.com"},
		{ID: "cust-2", Name: "Grace Hopper", Email: "grace@example.com"},
	}
}
