package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	threadsCollection  = "chat_threads"
	messagesCollection = "chat_messages"
)

// MongoClient wraps mongo.Client and exposes the chat collections.
type MongoClient struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoClient connects to MongoDB and pings the primary.
func NewMongoClient(ctx context.Context, uri, database string) (*MongoClient, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoClient{client: client, db: client.Database(database)}, nil
}

func (c *MongoClient) Threads() *mongo.Collection {
	return c.db.Collection(threadsCollection)
}

func (c *MongoClient) Messages() *mongo.Collection {
	return c.db.Collection(messagesCollection)
}

// CreateIndexes creates the indexes the chat log queries rely on.
func (c *MongoClient) CreateIndexes(ctx context.Context) error {
	_, err := c.Threads().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: map[string]int{"participants": 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create threads index: %w", err)
	}

	_, err = c.Messages().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: map[string]int{"thread_key": 1, "sent_at": 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create messages index: %w", err)
	}
	return nil
}

func (c *MongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
