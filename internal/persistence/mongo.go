package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type snapshotDocument struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoAdapter keeps the snapshot as a single document keyed by the logical name.
type MongoAdapter struct {
	collection *mongo.Collection
	key        string
}

const snapshotCollection = "cart_snapshots"

// ConnectMongoAdapter dials uri and returns an adapter over the snapshot
// collection of database once the server answers a ping. Close disconnects.
func ConnectMongoAdapter(ctx context.Context, uri, database, key string) (*MongoAdapter, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("cartkeeper").
		SetConnectTimeout(10*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(4))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB at %s: %w", uri, err)
	}

	return NewMongoAdapter(client.Database(database), key), nil
}

func NewMongoAdapter(db *mongo.Database, key string) *MongoAdapter {
	if key == "" {
		key = DefaultKey
	}
	return &MongoAdapter{
		collection: db.Collection(snapshotCollection),
		key:        key,
	}
}

func (m *MongoAdapter) Load(ctx context.Context) ([]byte, error) {
	var doc snapshotDocument

	err := m.collection.FindOne(ctx, bson.M{"_id": m.key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load cart snapshot: %w", err)
	}

	return doc.Data, nil
}

func (m *MongoAdapter) Store(ctx context.Context, data []byte) error {
	update := bson.M{
		"$set": bson.M{
			"data":       data,
			"updated_at": time.Now(),
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": m.key}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to store cart snapshot: %w", err)
	}

	return nil
}

func (m *MongoAdapter) Close(ctx context.Context) error {
	return m.collection.Database().Client().Disconnect(ctx)
}
