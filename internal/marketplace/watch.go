package marketplace

import (
	"context"
	"log/slog"
	"time"

	"prontoapp/backend/internal/config"
	"prontoapp/backend/internal/logger"
	"prontoapp/backend/internal/models"
)

// WatchQuotes streams the live quotes of a request: first the current ones,
// then each newly committed quote, all in createdAt ascending order. Feed
// messages only trigger a re-read of storage, so a quote is delivered once
// even if wake-ups are lost or repeated. The channel closes when ctx ends.
func (s *RequestStore) WatchQuotes(ctx context.Context, requestID string) (<-chan models.Quote, error) {
	if _, err := s.storage.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{RequestID: requestID, Component: "marketplace.watch"})

	var wake <-chan struct{}
	unsubscribe := func() {}
	if s.feed != nil {
		w, unsub, err := s.feed.Subscribe(ctx, requestID)
		if err != nil {
			slog.WarnContext(ctx, "quote feed unavailable, falling back to polling", "error", err)
		} else {
			wake, unsubscribe = w, unsub
		}
	}

	out := make(chan models.Quote, config.QuoteWatchBuffer)
	go func() {
		defer close(out)
		defer unsubscribe()

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		var cursor time.Time
		for {
			quotes, err := s.storage.ListQuotesSince(ctx, requestID, cursor)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.WarnContext(ctx, "failed to read new quotes", "error", err)
			}
			for _, q := range quotes {
				select {
				case out <- q:
					cursor = q.CreatedAt
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case _, ok := <-wake:
				if !ok {
					wake = nil
				}
			case <-ticker.C:
			}
		}
	}()

	return out, nil
}
