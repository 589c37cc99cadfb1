package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderRepository stores one document per order. Updates are conditional on the
// version the caller loaded.
type OrderRepository struct {
	coll *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(ordersCollection)}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	doc := toOrderDoc(o)
	doc.Version = 1
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: order %s or number %s exists", domain.ErrConflict, o.ID, o.OrderNumber)
		}
		return fmt.Errorf("mongo: insert order %s: %w", o.ID, err)
	}
	o.Version = 1
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: get order %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	doc := toOrderDoc(o)
	doc.Version = o.Version + 1

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": o.ID, "version": o.Version}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: order number %s", domain.ErrConflict, o.OrderNumber)
		}
		return fmt.Errorf("mongo: update order %s: %w", o.ID, err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": o.ID})
		if err != nil {
			return fmt.Errorf("mongo: update order %s: %w", o.ID, err)
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: order %s changed since version %d", domain.ErrConflict, o.ID, o.Version)
	}
	o.Version = doc.Version
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: delete order %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) Find(ctx context.Context, filter domain.Filter, page domain.Page) ([]*domain.Order, int64, error) {
	query := filterQuery(filter)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: count orders: %w", err)
	}

	opts := options.Find().
		SetSort(sortSpec(page.SortBy, page.Desc)).
		SetSkip(int64(page.Offset))
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	orders, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepository) FindAll(ctx context.Context, filter domain.Filter) ([]*domain.Order, error) {
	return r.find(ctx, filterQuery(filter), options.Find().SetSort(sortSpec(domain.SortCreatedAt, false)))
}

func (r *OrderRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*domain.Order, error) {
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find orders: %w", err)
	}
	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode orders: %w", err)
	}
	out := make([]*domain.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// filterQuery translates Filter into a query with the same meaning as Filter.Matches.
func filterQuery(f domain.Filter) bson.M {
	q := bson.M{}
	if !f.IncludeInactive {
		q["isActive"] = true
	}
	if f.Status != "" {
		q["status"] = string(f.Status)
	}
	if f.PaymentStatus != "" {
		q["paymentStatus"] = string(f.PaymentStatus)
	}
	if f.Priority != "" {
		q["priority"] = string(f.Priority)
	}
	if f.CustomerID != "" {
		q["customer"] = f.CustomerID
	}

	created := bson.M{}
	if f.DateFrom != nil {
		created["$gte"] = *f.DateFrom
	}
	if f.DateTo != nil {
		created["$lte"] = *f.DateTo
	}
	if len(created) > 0 {
		q["createdAt"] = created
	}

	amount := bson.M{}
	if f.MinAmount != nil {
		amount["$gte"] = toDecimal128(*f.MinAmount)
	}
	if f.MaxAmount != nil {
		amount["$lte"] = toDecimal128(*f.MaxAmount)
	}
	if len(amount) > 0 {
		q["totalAmount"] = amount
	}

	if f.City != "" {
		q["shippingAddress.city"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(f.City) + "$", Options: "i"}
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"orderNumber": rx},
			bson.M{"shippingAddress.name": rx},
			bson.M{"shippingAddress.phone": rx},
			bson.M{"notes.customer": rx},
			bson.M{"notes.admin": rx},
		}
	}
	return q
}

func sortSpec(field domain.SortField, desc bool) bson.D {
	key := "createdAt"
	switch field {
	case domain.SortTotalAmount:
		key = "totalAmount"
	case domain.SortOrderNumber:
		key = "orderNumber"
	case domain.SortStatus:
		key = "status"
	case domain.SortPriority:
		key = "priorityRank"
	}
	dir := 1
	if desc {
		dir = -1
	}
	return bson.D{{Key: key, Value: dir}, {Key: "_id", Value: dir}}
}
