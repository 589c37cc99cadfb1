package mongo

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// getDatabase returns a throwaway database, or skips when MONGO_URI is unset or unreachable.
func getDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	db := client.Database(fmt.Sprintf("minishop_test_%d", time.Now().UnixNano()))
	require.NoError(t, EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func sampleOrder(t *testing.T, id, number string, at time.Time) *domain.Order {
	t.Helper()
	o, err := domain.New(domain.Params{
		ID:          id,
		OrderNumber: number,
		CustomerID:  "cust-1",
		CreatedBy:   "cust-1",
		Items:       []domain.LineItem{{ProductID: "mug", Name: "Mug", Quantity: 2, UnitPrice: dec("10.25"), Discount: dec("0.50")}},
		Tax:         dec("1.10"),
		ShippingAddress: domain.Address{
			Name: "Ada Lovelace", Street: "12 St James's Sq", City: "London", State: "LDN", Zip: "SW1Y", Country: "UK", Phone: "555-0101",
		},
		PaymentMethod: domain.PaymentPayPal,
		Now:           at,
	})
	require.NoError(t, err)
	return o
}

func TestFilterQuery(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	floor := dec("10")

	q := filterQuery(domain.Filter{
		Status:    domain.StatusShipped,
		DateFrom:  &from,
		MinAmount: &floor,
		City:      "new york",
		Search:    " a.b ",
	})

	assert.Equal(t, true, q["isActive"])
	assert.Equal(t, "shipped", q["status"])
	assert.Equal(t, bson.M{"$gte": from}, q["createdAt"])
	assert.Equal(t, bson.M{"$gte": toDecimal128(floor)}, q["totalAmount"])
	assert.Equal(t, primitive.Regex{Pattern: "^new york$", Options: "i"}, q["shippingAddress.city"])
	or, ok := q["$or"].(bson.A)
	require.True(t, ok)
	assert.Len(t, or, 5)
	assert.Equal(t, bson.M{"orderNumber": primitive.Regex{Pattern: `a\.b`, Options: "i"}}, or[0])

	assert.NotContains(t, filterQuery(domain.Filter{IncludeInactive: true}), "isActive")
}

func TestSortSpec(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "priorityRank", Value: -1}, {Key: "_id", Value: -1}}, sortSpec(domain.SortPriority, true))
	assert.Equal(t, bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}, sortSpec("", false))
}

func TestOrderDoc_KeepsMoneyAndHistory(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	o := sampleOrder(t, "o-1", "ORD-20260314-0001", at)
	_, err := o.ChangeStatus(domain.StatusConfirmed, "admin", "ok", at.Add(time.Minute))
	require.NoError(t, err)

	back := toOrderDoc(o).toDomain()

	assert.True(t, back.TotalAmount.Equal(o.TotalAmount), back.TotalAmount.String())
	assert.True(t, back.Items[0].UnitPrice.Equal(dec("10.25")))
	assert.Equal(t, o.StatusHistory.Entries(), back.StatusHistory.Entries())
	require.NoError(t, back.CheckHistory())
}

func TestOrderRepository_Integration(t *testing.T) {
	db := getDatabase(t)
	ctx := context.Background()
	repo := NewOrderRepository(db)
	at := time.Now().UTC().Truncate(time.Millisecond)

	first := sampleOrder(t, "o-1", "ORD-20260314-0001", at)
	require.NoError(t, repo.Insert(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	dup := sampleOrder(t, "o-2", "ORD-20260314-0001", at)
	require.ErrorIs(t, repo.Insert(ctx, dup), domain.ErrConflict)

	loaded, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)
	stale, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)

	_, err = loaded.ChangeStatus(domain.StatusShipped, "admin", "", at)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	stale.SetTags([]string{"gift"}, "admin", at)
	require.ErrorIs(t, repo.Update(ctx, stale), domain.ErrConflict)

	second := sampleOrder(t, "o-3", "ORD-20260314-0002", at.Add(time.Second))
	require.NoError(t, repo.Insert(ctx, second))

	page, total, err := repo.Find(ctx, domain.Filter{Search: "0002"}, domain.Page{Limit: 10, SortBy: domain.SortCreatedAt, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, page, 1)
	assert.Equal(t, "o-3", page[0].ID)

	shipped, err := repo.FindAll(ctx, domain.Filter{Status: domain.StatusShipped, City: "LONDON"})
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, "o-1", shipped[0].ID)

	require.NoError(t, repo.Delete(ctx, "o-1"))
	_, err = repo.Get(ctx, "o-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, "o-1"), domain.ErrNotFound)
}

func TestProductRepository_Integration(t *testing.T) {
	db := getDatabase(t)
	ctx := context.Background()
	repo := NewProductRepository(db)
	require.NoError(t, repo.Save(ctx, &product.Product{ID: "mug", Name: "Mug", Price: dec("10"), Stock: 5, Active: true}))
	require.NoError(t, repo.Save(ctx, &product.Product{ID: "pen", Name: "Pen", Price: dec("2"), Stock: 1, Active: true}))

	got, err := repo.Reserve(ctx, []product.StockRequest{{ProductID: "mug", Quantity: 2}})
	require.NoError(t, err)
	assert.True(t, got[0].UnitPrice.Equal(dec("10")))

	_, err = repo.Reserve(ctx, []product.StockRequest{{ProductID: "mug", Quantity: 1}, {ProductID: "pen", Quantity: 2}})
	var short *product.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, []string{"pen"}, short.ProductIDs)

	mug, err := repo.Get(ctx, "mug")
	require.NoError(t, err)
	assert.Equal(t, 3, mug.Stock, "the applied mug decrement was rolled back")

	_, err = repo.Reserve(ctx, []product.StockRequest{{ProductID: "ghost", Quantity: 1}})
	require.ErrorIs(t, err, product.ErrNotFound)

	require.NoError(t, repo.Release(ctx, []product.StockRequest{{ProductID: "mug", Quantity: 2}}))
	mug, _ = repo.Get(ctx, "mug")
	assert.Equal(t, 5, mug.Stock)
}

func TestProductRepository_TransactionalReserveHidesPartialBatch(t *testing.T) {
	db := getDatabase(t)
	ctx := context.Background()
	txn, err := SupportsTransactions(ctx, db)
	require.NoError(t, err)
	if !txn {
		t.Skip("deployment does not support transactions")
	}
	repo := NewProductRepository(db, WithTransactions())

	for round := 0; round < 20; round++ {
		require.NoError(t, repo.Save(ctx, &product.Product{ID: "a", Name: "A", Price: dec("1"), Stock: 1, Active: true}))
		require.NoError(t, repo.Save(ctx, &product.Product{ID: "b", Name: "B", Price: dec("1"), Stock: 0, Active: true}))

		var wg sync.WaitGroup
		var batchErr, singleErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, batchErr = repo.Reserve(ctx, []product.StockRequest{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 5}})
		}()
		go func() {
			defer wg.Done()
			_, singleErr = repo.Reserve(ctx, []product.StockRequest{{ProductID: "a", Quantity: 1}})
		}()
		wg.Wait()

		require.NoError(t, singleErr, "round %d", round)
		var short *product.InsufficientStockError
		require.ErrorAs(t, batchErr, &short)
		assert.Contains(t, short.ProductIDs, "b")

		a, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 0, a.Stock)
	}
}

func TestCounter_Integration(t *testing.T) {
	db := getDatabase(t)
	ctx := context.Background()
	counter := NewCounter(db)

	for want := int64(1); want <= 3; want++ {
		got, err := counter.Next(ctx, "20260314")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := counter.Next(ctx, "20260315")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}
