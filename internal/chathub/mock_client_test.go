package chathub_test

import (
	"context"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"prontoapp/backend/internal/models"
)

type MockClient struct {
	userID      string
	threadKey   string
	RecvChannel chan models.ChatMessage
	closed      atomic.Bool
}

func newMockClient(userID, threadKey string) *MockClient {
	return &MockClient{
		userID:      userID,
		threadKey:   threadKey,
		RecvChannel: make(chan models.ChatMessage, 10),
	}
}

func (c *MockClient) GetUserID() string                         { return c.userID }
func (c *MockClient) GetThreadKey() string                      { return c.threadKey }
func (c *MockClient) GetSendChannel() chan<- models.ChatMessage { return c.RecvChannel }
func (c *MockClient) Run()                                      {}
func (c *MockClient) Close()                                    { c.closed.Store(true) }
func (c *MockClient) Closed() bool                              { return c.closed.Load() }

type MockStore struct {
	mock.Mock
}

func (m *MockStore) EnsureThread(ctx context.Context, a, b string) (*models.ChatThread, error) {
	args := m.Called(ctx, a, b)
	if t := args.Get(0); t != nil {
		return t.(*models.ChatThread), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) GetThread(ctx context.Context, key string) (*models.ChatThread, error) {
	args := m.Called(ctx, key)
	if t := args.Get(0); t != nil {
		return t.(*models.ChatThread), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Append(ctx context.Context, msg *models.ChatMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockStore) History(ctx context.Context, key string, limit int64) ([]models.ChatMessage, error) {
	args := m.Called(ctx, key, limit)
	if h := args.Get(0); h != nil {
		return h.([]models.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ThreadsFor(ctx context.Context, email string) ([]models.ChatThread, error) {
	args := m.Called(ctx, email)
	if th := args.Get(0); th != nil {
		return th.([]models.ChatThread), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockBus struct {
	mock.Mock
}

func (m *MockBus) PublishMessage(ctx context.Context, msg models.ChatMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockBus) Listen(ctx context.Context, out chan<- models.ChatMessage) {
	m.Called(ctx, out)
	<-ctx.Done()
}
