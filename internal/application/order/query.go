package order

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	"github.com/Zhima-Mochi/minishop-orders/internal/application/stats"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderGet  = "order.get"
	useCaseOrderList = "order.list"

	DefaultPageSize = 10
	MaxPageSize     = 100
)

type GetOrderInput struct {
	ID string
}

// GetOrderUseCase loads one active order and joins its references.
type GetOrderUseCase struct {
	repo     domain.Repository
	enricher *Enricher
	in       application.Instruments
}

func NewGetOrderUseCase(repo domain.Repository, enricher *Enricher, tel observability.Observability) *GetOrderUseCase {
	return &GetOrderUseCase{
		repo:     repo,
		enricher: enricher,
		in:       application.NewInstruments(tel, orderService),
	}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, cmd GetOrderInput) (_ *EnrichedOrder, err error) {
	ctx, exec := uc.in.Begin(ctx, useCaseOrderGet, "GetOrder", attribute.String("order.id", cmd.ID))
	defer func() { exec.End(err) }()

	entity, err := loadActive(ctx, uc.repo, cmd.ID)
	if err != nil {
		exec.Fail(repoStatus(err, "REPO_GET_FAILED"))
		return nil, err
	}
	if uc.enricher == nil {
		return &EnrichedOrder{Order: entity}, nil
	}
	enriched := uc.enricher.Enrich(ctx, []*domain.Order{entity})
	return &enriched[0], nil
}

type ListOrdersInput struct {
	Filter    domain.Filter
	Page      int
	Limit     int
	SortBy    domain.SortField
	SortOrder string
}

// Normalize applies defaults and reports every invalid paging field.
func (in *ListOrdersInput) Normalize() error {
	verr := &domain.ValidationError{}
	if in.Page == 0 {
		in.Page = 1
	}
	if in.Page < 1 {
		verr.Add("page", "must be at least 1")
	}
	if in.Limit == 0 {
		in.Limit = DefaultPageSize
	}
	if in.Limit < 1 || in.Limit > MaxPageSize {
		verr.Add("limit", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	}
	if in.SortBy == "" {
		in.SortBy = domain.SortCreatedAt
	}
	if !in.SortBy.Valid() {
		verr.Add("sortBy", "must be one of createdAt, totalAmount, orderNumber, status, priority")
	}
	switch in.SortOrder {
	case "":
		in.SortOrder = "desc"
	case "asc", "desc":
	default:
		verr.Add("sortOrder", "must be asc or desc")
	}
	return verr.Err()
}

type ListOrdersResult struct {
	Orders  []EnrichedOrder `json:"orders"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
	Total   int64           `json:"total"`
	Pages   int64           `json:"pages"`
	Summary stats.Summary   `json:"summary"`
}

// ListOrdersUseCase returns one enriched page of matching orders plus the
// summary of the whole match set.
type ListOrdersUseCase struct {
	repo     domain.Repository
	enricher *Enricher
	in       application.Instruments
}

func NewListOrdersUseCase(repo domain.Repository, enricher *Enricher, tel observability.Observability) *ListOrdersUseCase {
	return &ListOrdersUseCase{
		repo:     repo,
		enricher: enricher,
		in:       application.NewInstruments(tel, orderService),
	}
}

func (uc *ListOrdersUseCase) Execute(ctx context.Context, cmd ListOrdersInput) (_ *ListOrdersResult, err error) {
	ctx, exec := uc.in.Begin(ctx, useCaseOrderList, "ListOrders")
	defer func() { exec.End(err) }()

	if err := cmd.Normalize(); err != nil {
		exec.Fail("VALIDATION_FAILED")
		return nil, err
	}

	page := domain.Page{
		Offset: (cmd.Page - 1) * cmd.Limit,
		Limit:  cmd.Limit,
		SortBy: cmd.SortBy,
		Desc:   cmd.SortOrder == "desc",
	}
	orders, total, err := uc.repo.Find(ctx, cmd.Filter, page)
	if err != nil {
		exec.Fail("REPO_FIND_FAILED")
		return nil, fmt.Errorf("order: list: %w", err)
	}
	all, err := uc.repo.FindAll(ctx, cmd.Filter)
	if err != nil {
		exec.Fail("REPO_FIND_FAILED")
		return nil, fmt.Errorf("order: summarize: %w", err)
	}

	var rows []EnrichedOrder
	if uc.enricher != nil {
		rows = uc.enricher.Enrich(ctx, orders)
	} else {
		rows = make([]EnrichedOrder, 0, len(orders))
		for _, o := range orders {
			rows = append(rows, EnrichedOrder{Order: o})
		}
	}

	pages := (total + int64(cmd.Limit) - 1) / int64(cmd.Limit)
	exec.Add(observability.F("total", total), observability.F("returned", len(orders)))
	return &ListOrdersResult{
		Orders:  rows,
		Page:    cmd.Page,
		Limit:   cmd.Limit,
		Total:   total,
		Pages:   pages,
		Summary: stats.Summarize(all),
	}, nil
}
