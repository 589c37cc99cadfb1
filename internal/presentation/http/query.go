package httppresentation

import (
	"net/url"
	"strconv"
	"time"

	appOrder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	domainOrder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/shopspring/decimal"
)

const dateOnly = "2006-01-02"

func parseListQuery(q url.Values) (appOrder.ListOrdersInput, error) {
	verr := &domainOrder.ValidationError{}
	in := appOrder.ListOrdersInput{
		Filter:    parseFilter(q, verr),
		Page:      parseInt(q, "page", verr),
		Limit:     parseInt(q, "limit", verr),
		SortBy:    domainOrder.SortField(q.Get("sortBy")),
		SortOrder: q.Get("sortOrder"),
	}
	return in, verr.Err()
}

// parseFilter reads the shared list/stats filter and records bad values on verr.
func parseFilter(q url.Values, verr *domainOrder.ValidationError) domainOrder.Filter {
	f := domainOrder.Filter{
		Status:        domainOrder.Status(q.Get("status")),
		PaymentStatus: domainOrder.PaymentStatus(q.Get("paymentStatus")),
		Priority:      domainOrder.Priority(q.Get("priority")),
		CustomerID:    q.Get("customer"),
		City:          q.Get("city"),
		Search:        q.Get("search"),
	}
	if f.Status != "" && !f.Status.Valid() {
		verr.Add("status", "unknown status")
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		verr.Add("paymentStatus", "unknown payment status")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		verr.Add("priority", "unknown priority")
	}

	f.DateFrom = parseDate(q, "dateFrom", false, verr)
	f.DateTo = parseDate(q, "dateTo", true, verr)
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		verr.Add("dateTo", "must not be before dateFrom")
	}

	f.MinAmount = parseAmount(q, "minAmount", verr)
	f.MaxAmount = parseAmount(q, "maxAmount", verr)
	if f.MinAmount != nil && f.MaxAmount != nil && f.MaxAmount.LessThan(*f.MinAmount) {
		verr.Add("maxAmount", "must not be below minAmount")
	}
	return f
}

func parseInt(q url.Values, key string, verr *domainOrder.ValidationError) int {
	raw := q.Get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(key, "must be an integer")
		return 0
	}
	if v == 0 {
		// zero would silently select the default
		verr.Add(key, "must be at least 1")
	}
	return v
}

// parseDate accepts RFC 3339 or YYYY-MM-DD. A bare date used as an upper bound
// covers the whole day.
func parseDate(q url.Values, key string, endOfDay bool, verr *domainOrder.ValidationError) *time.Time {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		verr.Add(key, "must be RFC 3339 or YYYY-MM-DD")
		return nil
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t
}

func parseAmount(q url.Values, key string, verr *domainOrder.ValidationError) *decimal.Decimal {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		verr.Add(key, "must be a decimal number")
		return nil
	}
	if v.IsNegative() {
		verr.Add(key, "must not be negative")
	}
	return &v
}
