package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Counter keeps one document per scope and bumps it with an upserting $inc.
type Counter struct {
	coll *mongo.Collection
}

func NewCounter(db *mongo.Database) *Counter {
	return &Counter{coll: db.Collection(countersCollection)}
}

func (c *Counter) Next(ctx context.Context, scope string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := c.coll.FindOneAndUpdate(ctx, bson.M{"_id": scope}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("mongo: next sequence %s: %w", scope, err)
	}
	return doc.Seq, nil
}
