package chathub

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"prontoapp/backend/internal/models"
)

const chatChannelPrefix = "chat:"

// ChatChannel is the Redis channel that carries messages of one thread.
func ChatChannel(threadKey string) string {
	return chatChannelPrefix + threadKey
}

// RedisBus fans chat messages out to every hub instance via Redis Pub/Sub.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) PublishMessage(ctx context.Context, msg models.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, ChatChannel(msg.ThreadKey), payload).Err()
}

// Listen subscribes to every thread channel and forwards decoded messages to
// out until ctx is cancelled.
func (b *RedisBus) Listen(ctx context.Context, out chan<- models.ChatMessage) {
	pubsub := b.rdb.PSubscribe(ctx, chatChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			var msg models.ChatMessage
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				slog.WarnContext(ctx, "undecodable chat message on bus", "channel", raw.Channel, "error", err)
				continue
			}
			if msg.ThreadKey == "" {
				msg.ThreadKey = strings.TrimPrefix(raw.Channel, chatChannelPrefix)
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}
