package stats

import (
	"cmp"
	"slices"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"

	"github.com/shopspring/decimal"
)

const topProductsLimit = 10

type PaymentMethodStats struct {
	Count   int64           `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ProductStats struct {
	ProductID     string          `json:"product"`
	Name          string          `json:"name"`
	TotalQuantity int64           `json:"totalQuantity"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
}

// Summary is the rollup over a set of orders.
type Summary struct {
	TotalOrders            int64                                       `json:"totalOrders"`
	TotalRevenue           decimal.Decimal                             `json:"totalRevenue"`
	AverageOrderValue      decimal.Decimal                             `json:"averageOrderValue"`
	StatusBreakdown        map[domain.Status]int64                     `json:"statusBreakdown"`
	PaymentMethodBreakdown map[domain.PaymentMethod]PaymentMethodStats `json:"paymentMethodBreakdown"`
	TopProducts            []ProductStats                              `json:"topProducts"`
}

// Summarize rolls orders up. It never mutates its input and is safe on an empty set.
func Summarize(orders []*domain.Order) Summary {
	s := Summary{
		TotalRevenue:           decimal.Zero,
		AverageOrderValue:      decimal.Zero,
		StatusBreakdown:        make(map[domain.Status]int64),
		PaymentMethodBreakdown: make(map[domain.PaymentMethod]PaymentMethodStats),
		TopProducts:            []ProductStats{},
	}

	products := make(map[string]*ProductStats)
	for _, o := range orders {
		if o == nil {
			continue
		}
		s.TotalOrders++
		s.TotalRevenue = s.TotalRevenue.Add(o.TotalAmount)
		s.StatusBreakdown[o.Status]++

		pm := s.PaymentMethodBreakdown[o.PaymentMethod]
		pm.Count++
		pm.Revenue = pm.Revenue.Add(o.TotalAmount)
		s.PaymentMethodBreakdown[o.PaymentMethod] = pm

		for _, li := range o.Items {
			ps, ok := products[li.ProductID]
			if !ok {
				ps = &ProductStats{ProductID: li.ProductID, Name: li.Name, TotalRevenue: decimal.Zero}
				products[li.ProductID] = ps
			}
			if ps.Name == "" {
				ps.Name = li.Name
			}
			ps.TotalQuantity += int64(li.Quantity)
			ps.TotalRevenue = ps.TotalRevenue.Add(li.Total())
		}
	}

	if s.TotalOrders > 0 {
		s.AverageOrderValue = s.TotalRevenue.Div(decimal.NewFromInt(s.TotalOrders)).Round(2)
	}
	s.TopProducts = topProducts(products, topProductsLimit)
	return s
}

// topProducts orders by quantity desc, then revenue desc, then product id asc.
func topProducts(products map[string]*ProductStats, limit int) []ProductStats {
	out := make([]ProductStats, 0, len(products))
	for _, p := range products {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b ProductStats) int {
		if c := cmp.Compare(b.TotalQuantity, a.TotalQuantity); c != 0 {
			return c
		}
		if c := b.TotalRevenue.Cmp(a.TotalRevenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
