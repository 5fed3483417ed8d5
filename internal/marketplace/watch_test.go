package marketplace_test

import (
	"context"
	"testing"
	"time"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan models.Quote) models.Quote {
	t.Helper()
	select {
	case q, ok := <-ch:
		require.True(t, ok, "watch channel closed early")
		return q
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quote")
		return models.Quote{}
	}
}

func TestWatchQuotes_SnapshotThenLiveInOrder(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ana := e.provider(t, "ana", "Plomería", "La Plata")
	beto := e.provider(t, "beto", "Plomería", "La Plata")
	carla := e.provider(t, "carla", "Plomería", "La Plata")
	req := e.request(t, "La Plata")

	q1 := e.quote(t, req.ID, ana.ID, 1000)
	q2 := e.quote(t, req.ID, beto.ID, 2000)

	ch, err := e.store.WatchQuotes(ctx, req.ID)
	require.NoError(t, err)

	assert.Equal(t, q1.ID, receive(t, ch).ID)
	assert.Equal(t, q2.ID, receive(t, ch).ID)

	q3 := e.quote(t, req.ID, carla.ID, 3000)
	got := receive(t, ch)
	assert.Equal(t, q3.ID, got.ID)
	assert.False(t, got.CreatedAt.Before(q2.CreatedAt))

	// repeated wake-ups must not redeliver anything
	require.NoError(t, e.feed.Publish(ctx, req.ID))
	require.NoError(t, e.feed.Publish(ctx, req.ID))
	select {
	case q := <-ch:
		t.Fatalf("unexpected duplicate delivery of %s", q.ID)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel must close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchQuotes_MissingRequest(t *testing.T) {
	e := newEnv(t)
	_, err := e.store.WatchQuotes(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
