package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDoc struct {
	ID              string               `bson:"_id"`
	Name            string               `bson:"name"`
	Price           primitive.Decimal128 `bson:"price"`
	Stock           int                  `bson:"stock"`
	DiscountPercent primitive.Decimal128 `bson:"discountPercent"`
	Active          bool                 `bson:"active"`
	Featured        bool                 `bson:"featured"`
	Category        string               `bson:"category,omitempty"`
	Tags            []string             `bson:"tags,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

func toProductDoc(p *product.Product) productDoc {
	return productDoc{
		ID:              p.ID,
		Name:            p.Name,
		Price:           toDecimal128(p.Price),
		Stock:           p.Stock,
		DiscountPercent: toDecimal128(p.DiscountPercent),
		Active:          p.Active,
		Featured:        p.Featured,
		Category:        p.Category,
		Tags:            p.Tags,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (d productDoc) toDomain() *product.Product {
	return &product.Product{
		ID:              d.ID,
		Name:            d.Name,
		Price:           fromDecimal128(d.Price),
		Stock:           d.Stock,
		DiscountPercent: fromDecimal128(d.DiscountPercent),
		Active:          d.Active,
		Featured:        d.Featured,
		Category:        d.Category,
		Tags:            d.Tags,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

const reserveAttempts = 3

// ProductRepository decrements stock with one conditional update per product.
// With transactions the whole batch commits or aborts together; without them a
// batch that fails part way rolls back the decrements it already applied.
type ProductRepository struct {
	coll         *mongo.Collection
	transactions bool
	now          func() time.Time
}

type ProductOption func(*ProductRepository)

// WithTransactions runs each reserve inside a multi-document transaction.
// Only replica sets and sharded clusters support it; see SupportsTransactions.
func WithTransactions() ProductOption {
	return func(r *ProductRepository) { r.transactions = true }
}

func NewProductRepository(db *mongo.Database, opts ...ProductOption) *ProductRepository {
	r := &ProductRepository{
		coll: db.Collection(productsCollection),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// shortfall marks the product whose conditional decrement matched nothing.
type shortfall struct{ productID string }

func (s *shortfall) Error() string { return "mongo: no stock matched for " + s.productID }

// Reserve takes every requested unit or none. A miss that the follow-up read
// cannot attribute to a real shortage was caused by a concurrent batch and is
// retried.
func (r *ProductRepository) Reserve(ctx context.Context, reqs []product.StockRequest) ([]product.Reservation, error) {
	var failed string
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		var (
			out []product.Reservation
			err error
		)
		if r.transactions {
			out, err = r.reserveInTransaction(ctx, reqs)
		} else {
			out, err = r.reserveSequential(ctx, reqs)
		}

		var miss *shortfall
		if !errors.As(err, &miss) {
			return out, err
		}
		failed = miss.productID
		if err := r.explain(ctx, reqs); err != nil {
			return nil, err
		}
	}
	return nil, &product.InsufficientStockError{ProductIDs: []string{failed}}
}

func (r *ProductRepository) reserveInTransaction(ctx context.Context, reqs []product.StockRequest) ([]product.Reservation, error) {
	sess, err := r.coll.Database().Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("mongo: start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		out := make([]product.Reservation, 0, len(reqs))
		for _, req := range reqs {
			p, err := r.decrement(sc, req)
			if err != nil {
				return nil, err
			}
			out = append(out, product.ReservationFrom(p, req.Quantity))
		}
		return out, nil
	})
	if err != nil {
		var miss *shortfall
		if errors.As(err, &miss) {
			return nil, miss
		}
		return nil, fmt.Errorf("mongo: reserve transaction: %w", err)
	}
	return res.([]product.Reservation), nil
}

func (r *ProductRepository) reserveSequential(ctx context.Context, reqs []product.StockRequest) ([]product.Reservation, error) {
	applied := make([]product.StockRequest, 0, len(reqs))
	out := make([]product.Reservation, 0, len(reqs))

	for _, req := range reqs {
		p, err := r.decrement(ctx, req)
		if err != nil {
			if rbErr := r.restore(ctx, applied); rbErr != nil {
				return nil, fmt.Errorf("mongo: reserve rollback: %w", errors.Join(err, rbErr))
			}
			return nil, err
		}
		applied = append(applied, req)
		out = append(out, product.ReservationFrom(p, req.Quantity))
	}
	return out, nil
}

func (r *ProductRepository) decrement(ctx context.Context, req product.StockRequest) (*product.Product, error) {
	filter := bson.M{"_id": req.ProductID, "active": true, "stock": bson.M{"$gte": req.Quantity}}
	update := bson.M{
		"$inc": bson.M{"stock": -req.Quantity},
		"$set": bson.M{"updatedAt": r.now().UTC()},
	}

	var doc productDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &shortfall{productID: req.ProductID}
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: reserve %s: %w", req.ProductID, err)
	}
	return doc.toDomain(), nil
}

// restore adds back decrements. It runs detached from ctx so a cancelled
// request still leaves stock consistent.
func (r *ProductRepository) restore(ctx context.Context, reqs []product.StockRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(reqs))
	for _, req := range reqs {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": req.ProductID}).
			SetUpdate(bson.M{"$inc": bson.M{"stock": req.Quantity}, "$set": bson.M{"updatedAt": r.now().UTC()}}))
	}
	_, err := r.coll.BulkWrite(context.WithoutCancel(ctx), models, options.BulkWrite().SetOrdered(true))
	return err
}

// explain re-reads the batch after a missed conditional update and names every
// offender. It returns nil when the committed state covers the whole batch.
func (r *ProductRepository) explain(ctx context.Context, reqs []product.StockRequest) error {
	found, err := r.FindByIDs(ctx, requestIDs(reqs))
	if err != nil {
		return fmt.Errorf("mongo: reserve lookup: %w", err)
	}

	var missing, short []string
	for _, req := range reqs {
		p, ok := found[req.ProductID]
		switch {
		case !ok || !p.Active:
			missing = append(missing, req.ProductID)
		case p.Stock < req.Quantity:
			short = append(short, req.ProductID)
		}
	}
	switch {
	case len(missing) > 0:
		return &product.NotFoundError{ProductIDs: missing}
	case len(short) > 0:
		return &product.InsufficientStockError{ProductIDs: short}
	}
	return nil
}

func (r *ProductRepository) Release(ctx context.Context, reqs []product.StockRequest) error {
	found, err := r.FindByIDs(ctx, requestIDs(reqs))
	if err != nil {
		return fmt.Errorf("mongo: release lookup: %w", err)
	}
	var missing []string
	for _, req := range reqs {
		if _, ok := found[req.ProductID]; !ok {
			missing = append(missing, req.ProductID)
		}
	}
	if len(missing) > 0 {
		return &product.NotFoundError{ProductIDs: missing}
	}

	if err := r.restore(ctx, reqs); err != nil {
		return fmt.Errorf("mongo: release: %w", err)
	}
	return nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*product.Product, error) {
	var doc productDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: get product %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("mongo: find products: %w", err)
	}
	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode products: %w", err)
	}
	for _, d := range docs {
		out[d.ID] = d.toDomain()
	}
	return out, nil
}

func (r *ProductRepository) Save(ctx context.Context, p *product.Product) error {
	if p == nil {
		return nil
	}
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, toProductDoc(p), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: save product %s: %w", p.ID, err)
	}
	return nil
}

func requestIDs(reqs []product.StockRequest) []string {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ProductID)
	}
	return ids
}
