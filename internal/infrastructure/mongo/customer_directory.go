package mongo

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/customer"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type customerDoc struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email,omitempty"`
	Phone string `bson:"phone,omitempty"`
}

type CustomerDirectory struct {
	coll *mongo.Collection
}

func NewCustomerDirectory(db *mongo.Database) *CustomerDirectory {
	return &CustomerDirectory{coll: db.Collection(customersCollection)}
}

func (d *CustomerDirectory) FindByIDs(ctx context.Context, ids []string) (map[string]customer.Customer, error) {
	out := make(map[string]customer.Customer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := d.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("mongo: find customers: %w", err)
	}
	var docs []customerDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode customers: %w", err)
	}
	for _, c := range docs {
		out[c.ID] = customer.Customer{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone}
	}
	return out, nil
}

func (d *CustomerDirectory) Save(ctx context.Context, c customer.Customer) error {
	doc := customerDoc{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone}
	if _, err := d.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongo: save customer %s: %w", c.ID, err)
	}
	return nil
}
