package order

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderDelete = "order.delete"

type DeleteOrderInput struct {
	ID    string
	Actor string
	// Soft deactivates the order instead of removing it.
	Soft bool
}

// DeleteOrderUseCase removes an order. Reserved stock is not released.
type DeleteOrderUseCase struct {
	repo   domain.Repository
	events eventPublisher
	in     application.Instruments
	now    func() time.Time
}

func NewDeleteOrderUseCase(repo domain.Repository, publisher domoutbox.Publisher, tel observability.Observability) *DeleteOrderUseCase {
	in := application.NewInstruments(tel, orderService)
	return &DeleteOrderUseCase{
		repo:   repo,
		events: newEventPublisher(publisher, in.Metrics),
		in:     in,
		now:    time.Now,
	}
}

func (uc *DeleteOrderUseCase) Execute(ctx context.Context, cmd DeleteOrderInput) (_ struct{}, err error) {
	ctx, exec := uc.in.Begin(ctx, useCaseOrderDelete, "DeleteOrder",
		attribute.String("order.id", cmd.ID),
		attribute.Bool("order.soft_delete", cmd.Soft),
	)
	defer func() { exec.End(err) }()

	if cmd.ID == "" {
		exec.Fail("VALIDATION_FAILED")
		return struct{}{}, fieldError("id", "is required")
	}

	entity, err := loadActive(ctx, uc.repo, cmd.ID)
	if err != nil {
		exec.Fail(repoStatus(err, "REPO_GET_FAILED"))
		return struct{}{}, err
	}

	if cmd.Soft {
		entity.Deactivate(cmd.Actor, uc.now())
		err = uc.repo.Update(ctx, entity)
	} else {
		err = uc.repo.Delete(ctx, entity.ID)
	}
	if err != nil {
		exec.Fail(repoStatus(err, "REPO_DELETE_FAILED"))
		return struct{}{}, fmt.Errorf("order: delete %s: %w", entity.ID, err)
	}

	if pubErr := uc.events.publish(ctx, domain.NewOrderDeletedEvent(entity, cmd.Soft)); pubErr != nil {
		exec.SetStatus("EVENT_PUBLISH_FAILED")
		exec.Add(observability.F("event_publish_error", pubErr.Error()))
	}
	exec.Add(
		observability.F("order_id", entity.ID),
		observability.F("order_number", entity.OrderNumber),
		observability.F("soft", cmd.Soft),
	)
	return struct{}{}, nil
}
