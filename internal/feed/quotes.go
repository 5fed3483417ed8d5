// Package feed carries "something changed" signals between instances over
// Redis pub/sub. Messages carry no data; subscribers re-read storage.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const quotesChannelPrefix = "quotes:"

// QuoteFeed publishes and subscribes to per-request quote wake-ups.
type QuoteFeed struct {
	rdb *redis.Client
}

func NewQuoteFeed(rdb *redis.Client) *QuoteFeed {
	return &QuoteFeed{rdb: rdb}
}

func QuotesChannel(requestID string) string {
	return quotesChannelPrefix + requestID
}

// Publish wakes every subscriber of requestID on any instance.
func (f *QuoteFeed) Publish(ctx context.Context, requestID string) error {
	return f.rdb.Publish(ctx, QuotesChannel(requestID), "1").Err()
}

// Subscribe returns a channel that receives a value after each Publish for
// requestID. Bursts coalesce into one wake-up. The channel is closed after
// the returned cancel func is called or the subscription breaks.
func (f *QuoteFeed) Subscribe(ctx context.Context, requestID string) (<-chan struct{}, func(), error) {
	pubsub := f.rdb.Subscribe(ctx, QuotesChannel(requestID))

	// Wait for the subscription to be confirmed so no publish is missed
	// between Subscribe returning and the first read.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer close(wake)
		for range pubsub.Channel() {
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				slog.Warn("failed to close quote subscription", "request_id", requestID, "error", err)
			}
		})
	}
	return wake, cancel, nil
}
