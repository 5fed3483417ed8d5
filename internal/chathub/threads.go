package chathub

import (
	"context"
	"slices"
	"strings"
	"time"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/config"
	"prontoapp/backend/internal/models"
)

// Message types exchanged with clients. Only MessageText is persisted.
const (
	MessageText        = "text"
	MessageSystemError = "system_error"
)

// MessageStore is the append-only log behind chat threads.
type MessageStore interface {
	EnsureThread(ctx context.Context, a, b string) (*models.ChatThread, error)
	GetThread(ctx context.Context, key string) (*models.ChatThread, error)
	Append(ctx context.Context, msg *models.ChatMessage) error
	History(ctx context.Context, key string, limit int64) ([]models.ChatMessage, error)
	ThreadsFor(ctx context.Context, email string) ([]models.ChatThread, error)
}

// Threads applies the chat rules on top of a MessageStore: threads are
// opened lazily by either participant, and only participants read or write.
type Threads struct {
	store MessageStore
	now   func() time.Time
}

func NewThreads(store MessageStore) *Threads {
	return &Threads{store: store, now: time.Now}
}

// Open returns the thread between a and b, creating it on first access.
func (t *Threads) Open(ctx context.Context, a, b string) (*models.ChatThread, error) {
	a, b = models.NormalizeEmail(a), models.NormalizeEmail(b)
	if a == "" || b == "" {
		return nil, apperr.Validation("a chat thread needs two participants")
	}
	if a == b {
		return nil, apperr.Validation("cannot open a chat thread with yourself")
	}
	return t.store.EnsureThread(ctx, a, b)
}

// Append adds a text message by author to the thread.
func (t *Threads) Append(ctx context.Context, key, author, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("message text is empty")
	}
	if len(text) > config.ChatMaxMessageBytes {
		return nil, apperr.Validation("message exceeds %d bytes", config.ChatMaxMessageBytes)
	}

	author = models.NormalizeEmail(author)
	if err := t.requireParticipant(ctx, key, author); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ThreadKey: key,
		Author:    author,
		Text:      text,
		SentAt:    t.now().UTC(),
		Type:      MessageText,
	}
	if err := t.store.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns the newest messages of the thread, oldest first.
func (t *Threads) History(ctx context.Context, key, reader string) ([]models.ChatMessage, error) {
	if err := t.requireParticipant(ctx, key, models.NormalizeEmail(reader)); err != nil {
		return nil, err
	}
	return t.store.History(ctx, key, config.ChatHistoryLimit)
}

// Mine lists the threads email takes part in.
func (t *Threads) Mine(ctx context.Context, email string) ([]models.ChatThread, error) {
	return t.store.ThreadsFor(ctx, models.NormalizeEmail(email))
}

func (t *Threads) requireParticipant(ctx context.Context, key, email string) error {
	thread, err := t.store.GetThread(ctx, key)
	if err != nil {
		return err
	}
	if !slices.Contains(thread.Participants, email) {
		return apperr.New(apperr.ErrAuth, "%s is not a participant of this thread", email)
	}
	return nil
}
