package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore keeps history in a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// OpenMongo connects to uri and verifies the connection with a ping.
func OpenMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("store: MONGODB_URI is not set")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store: ping mongodb: %w", err)
	}
	return &MongoStore{client: client, collection: client.Database(database).Collection(collection)}, nil
}

func (m *MongoStore) Append(ctx context.Context, rec Record) error {
	rec.Timestamp = rec.Timestamp.UTC()
	if _, err := m.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("store: insert %s record: %w", rec.Kind, err)
	}
	return nil
}

func (m *MongoStore) Since(ctx context.Context, kind string, since time.Time) ([]Record, error) {
	filter := bson.M{"kind": kind, "timestamp": bson.M{"$gte": since.UTC()}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: find %s records: %w", kind, err)
	}
	out := []Record{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("store: decode %s records: %w", kind, err)
	}
	return out, nil
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

var _ HistoryStore = (*MongoStore)(nil)
