package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application/audit"
	appInventory "github.com/Zhima-Mochi/minishop-orders/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/application/ordernumber"
	"github.com/Zhima-Mochi/minishop-orders/internal/application/stats"
	"github.com/Zhima-Mochi/minishop-orders/internal/config"
	domainOrder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
	mongostore "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/mongo"
	infraobs "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/outbox"
	redisstore "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/minishop-orders/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-orders/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-orders/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	busBuffer      = 256
	busConcurrency = 4
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		LogFile: cfg.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	// Money goes over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms := prometrics.RegisterDefaults(prometrics.New(registry, "", ""))
	tel := infraobs.New(
		oteltrace.New(cfg.ServiceName),
		zaplogger.Wrap(baseLogger),
		counters,
		histograms,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		systemLogger.Fatal("store_open_failed", zap.Error(err))
	}
	defer st.close()
	systemLogger.Info("stores_ready",
		zap.String("storage", cfg.Storage),
		zap.String("stock_ledger", cfg.StockLedger),
		zap.String("order_sequence", cfg.OrderSequence),
	)

	// In-process event bus; the audit worker is its only consumer.
	bus := outbox.NewBus(tel, busBuffer, busConcurrency)
	auditWorker := audit.NewWorker(bus, tel, func(consumer string, h domoutbox.Handler) domoutbox.Handler {
		return workerpresentation.EventHandler(tel, consumer, h)
	})
	auditWorker.Start()
	bus.Start(ctx)

	ledger := appInventory.NewLedger(st.stock, tel)
	numbers := ordernumber.NewGenerator(st.counter, tel)
	enricher := appOrder.NewEnricher(st.catalog, st.customers, tel)

	handler := httppresentation.NewHandler(httppresentation.UseCases{
		CreateOrder: appOrder.NewCreateOrderUseCase(st.orders, ledger, numbers, id.NewUUIDGenerator(), bus, tel),
		UpdateOrder: appOrder.NewUpdateOrderUseCase(st.orders, ledger, bus, tel),
		DeleteOrder: appOrder.NewDeleteOrderUseCase(st.orders, bus, tel),
		GetOrder:    appOrder.NewGetOrderUseCase(st.orders, enricher, tel),
		ListOrders:  appOrder.NewListOrdersUseCase(st.orders, enricher, tel),
		Overview:    stats.NewAggregator(st.orders, tel),
	}, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		systemLogger.Error("event_bus_shutdown_error",
			zap.Error(err),
		)
	}
}

// stores is the persistence wiring selected by configuration.
type stores struct {
	catalog   appOrder.ProductLookup
	stock     product.StockRepository
	orders    domainOrder.Repository
	counter   ordernumber.Counter
	customers appOrder.CustomerLookup
	closers   []func(context.Context) error
}

func (s *stores) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i](ctx)
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}

	var catalog product.Repository
	switch cfg.Storage {
	case config.StorageMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, client.Disconnect)
		db := client.Database(cfg.MongoDB)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			st.close()
			return nil, err
		}
		txn, err := mongostore.SupportsTransactions(ctx, db)
		if err != nil {
			st.close()
			return nil, err
		}
		var productOpts []mongostore.ProductOption
		if txn {
			productOpts = append(productOpts, mongostore.WithTransactions())
		}
		catalog = mongostore.NewProductRepository(db, productOpts...)
		st.orders = mongostore.NewOrderRepository(db)
		st.counter = mongostore.NewCounter(db)
		st.customers = mongostore.NewCustomerDirectory(db)
	default:
		catalog = memory.NewProductRepository(demoProducts()...)
		st.orders = memory.NewOrderRepository()
		st.counter = memory.NewCounter()
		st.customers = memory.NewCustomerDirectory(demoCustomers()...)
	}
	st.catalog = catalog
	st.stock = catalog

	if !cfg.UsesRedis() {
		return st, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	st.closers = append(st.closers, func(context.Context) error { return client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		st.close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	if cfg.StockLedger == config.BackendRedis {
		ledger := redisstore.NewStockLedger(client)
		if cfg.Storage == config.StorageMemory {
			if err := ledger.Seed(ctx, demoProducts()...); err != nil {
				st.close()
				return nil, err
			}
		}
		st.stock = ledger
	}
	if cfg.OrderSequence == config.BackendRedis {
		st.counter = redisstore.NewCounter(client)
	}
	return st, nil
}
