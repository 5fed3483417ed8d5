package storage

import (
	"context"
	"errors"
	"time"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatLog is the append-only message log of chat threads, stored in MongoDB.
type ChatLog struct {
	threads  *mongo.Collection
	messages *mongo.Collection
	now      func() time.Time
}

func NewChatLog(c *MongoClient) *ChatLog {
	return &ChatLog{threads: c.Threads(), messages: c.Messages(), now: time.Now}
}

// EnsureThread returns the thread between a and b, creating it on first access.
func (l *ChatLog) EnsureThread(ctx context.Context, a, b string) (*models.ChatThread, error) {
	key := models.ThreadKey(a, b)
	participants := []string{models.NormalizeEmail(a), models.NormalizeEmail(b)}

	_, err := l.threads.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$setOnInsert": bson.M{"participants": participants, "created_at": l.now().UTC()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return nil, apperr.FromContext(err)
	}
	return l.GetThread(ctx, key)
}

func (l *ChatLog) GetThread(ctx context.Context, key string) (*models.ChatThread, error) {
	var thread models.ChatThread
	err := l.threads.FindOne(ctx, bson.M{"_id": key}).Decode(&thread)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("chat thread %s not found", key)
	}
	if err != nil {
		return nil, apperr.FromContext(err)
	}
	return &thread, nil
}

// Append stores msg, assigning an id if it has none.
func (l *ChatLog) Append(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	_, err := l.messages.InsertOne(ctx, msg)
	return apperr.FromContext(err)
}

// History returns up to limit of the newest messages in the thread, oldest first.
func (l *ChatLog) History(ctx context.Context, key string, limit int64) ([]models.ChatMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := l.messages.Find(ctx, bson.M{"thread_key": key}, opts)
	if err != nil {
		return nil, apperr.FromContext(err)
	}
	defer cursor.Close(ctx)

	messages := []models.ChatMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, apperr.FromContext(err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ThreadsFor lists the threads a participant belongs to, newest first.
func (l *ChatLog) ThreadsFor(ctx context.Context, email string) ([]models.ChatThread, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := l.threads.Find(ctx, bson.M{"participants": models.NormalizeEmail(email)}, opts)
	if err != nil {
		return nil, apperr.FromContext(err)
	}
	defer cursor.Close(ctx)

	threads := []models.ChatThread{}
	if err := cursor.All(ctx, &threads); err != nil {
		return nil, apperr.FromContext(err)
	}
	return threads, nil
}
