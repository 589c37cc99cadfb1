package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application/audit"
	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	infraobs "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	workerpresentation "github.com/Zhima-Mochi/minishop-orders/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWorker_RecordsOrderEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	reg := prometheus.NewRegistry()
	counters, histograms := prometrics.RegisterDefaults(prometrics.New(reg, "", ""))
	tel := infraobs.New(nil, zaplogger.Wrap(zap.New(core)), counters, histograms)

	bus := outbox.NewBus(tel, 16, 2)
	worker := audit.NewWorker(bus, tel, func(consumer string, h domoutbox.Handler) domoutbox.Handler {
		return workerpresentation.EventHandler(tel, consumer, h)
	})
	worker.Start()
	bus.Start(context.Background())

	o := &domorder.Order{ID: "o-1", OrderNumber: "ORD-20260314-0001", Status: domorder.StatusConfirmed}
	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domorder.NewOrderCreatedEvent(o)))
	require.NoError(t, bus.Publish(ctx, domorder.NewOrderStatusChangedEvent(o, domorder.StatusPending)))
	require.NoError(t, bus.Publish(ctx, domorder.NewOrderDeletedEvent(o, true)))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(stopCtx))

	recorded := logs.FilterMessage("order_event_recorded").All()
	require.Len(t, recorded, 3)
	for _, entry := range recorded {
		fields := entry.ContextMap()
		assert.Equal(t, "o-1", fields["order_id"])
		assert.NotEmpty(t, fields["event_id"])
		assert.Equal(t, "order-audit", fields["consumer"])
	}

	n, err := testutil.GatherAndCount(reg, string(observability.MOrderEvents))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
