package stats

import (
	"time"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
)

// Period is a named reporting window ending now.
type Period string

const (
	PeriodAll     Period = ""
	PeriodToday   Period = "today"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// ParsePeriod accepts the empty string (no window) and the named periods.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodAll, PeriodToday, PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear:
		return p, nil
	}
	return "", &domain.ValidationError{Fields: []domain.FieldError{{
		Field:   "period",
		Message: "must be one of today, week, month, quarter, year",
	}}}
}

// Start is the beginning of the window that ends at now. ok is false for PeriodAll.
// "today" starts at local midnight in now's location.
func (p Period) Start(now time.Time) (start time.Time, ok bool) {
	switch p {
	case PeriodToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case PeriodWeek:
		return now.AddDate(0, 0, -7), true
	case PeriodMonth:
		return now.AddDate(0, -1, 0), true
	case PeriodQuarter:
		return now.AddDate(0, -3, 0), true
	case PeriodYear:
		return now.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}

// Narrow intersects the filter's createdAt range with the period window.
func (p Period) Narrow(f domain.Filter, now time.Time) domain.Filter {
	start, ok := p.Start(now)
	if !ok {
		return f
	}
	if f.DateFrom == nil || f.DateFrom.Before(start) {
		f.DateFrom = &start
	}
	if f.DateTo == nil || f.DateTo.After(now) {
		end := now
		f.DateTo = &end
	}
	return f
}
