package chathub_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/chathub"
	"prontoapp/backend/internal/models"
)

const (
	ana  = "ana@example.com"
	juan = "juan@example.com"
	eve  = "eve@example.com"
)

var threadKey = models.ThreadKey(ana, juan)

func anaJuanThread() *models.ChatThread {
	return &models.ChatThread{Key: threadKey, Participants: []string{ana, juan}}
}

func startHub(t *testing.T, store *MockStore, bus chathub.Bus) (*chathub.ManagerService, context.CancelFunc) {
	t.Helper()
	hub := chathub.NewManagerService(chathub.NewThreads(store), bus)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub, cancel
}

func receive(t *testing.T, c *MockClient) models.ChatMessage {
	t.Helper()
	select {
	case msg := <-c.RecvChannel:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("%s received nothing", c.GetUserID())
		return models.ChatMessage{}
	}
}

func assertNothing(t *testing.T, c *MockClient) {
	t.Helper()
	select {
	case msg := <-c.RecvChannel:
		t.Fatalf("%s unexpectedly received %+v", c.GetUserID(), msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_DeliversStoredMessageToThreadParticipants(t *testing.T) {
	store := new(MockStore)
	store.On("GetThread", mock.Anything, threadKey).Return(anaJuanThread(), nil)
	store.On("Append", mock.Anything, mock.MatchedBy(func(m *models.ChatMessage) bool {
		return m.Author == ana && m.Text == "hola" && m.Type == chathub.MessageText
	})).Return(nil)

	hub, _ := startHub(t, store, nil)

	clientAna := newMockClient(ana, threadKey)
	clientJuan := newMockClient(juan, threadKey)
	other := newMockClient(juan, models.ThreadKey(juan, eve))
	hub.RegisterCh <- clientAna
	hub.RegisterCh <- clientJuan
	hub.RegisterCh <- other

	hub.IncomingCh <- models.ChatMessage{ThreadKey: threadKey, Author: ana, Text: "  hola  "}

	got := receive(t, clientJuan)
	assert.Equal(t, "hola", got.Text)
	assert.Equal(t, ana, got.Author)
	assert.False(t, got.SentAt.IsZero())
	assert.Equal(t, "hola", receive(t, clientAna).Text)
	assertNothing(t, other)
	store.AssertExpectations(t)
}

func TestManager_RejectsNonParticipant(t *testing.T) {
	store := new(MockStore)
	store.On("GetThread", mock.Anything, threadKey).Return(anaJuanThread(), nil)

	hub, _ := startHub(t, store, nil)

	intruder := newMockClient(eve, threadKey)
	clientJuan := newMockClient(juan, threadKey)
	hub.RegisterCh <- intruder
	hub.RegisterCh <- clientJuan

	hub.IncomingCh <- models.ChatMessage{ThreadKey: threadKey, Author: eve, Text: "hi"}

	got := receive(t, intruder)
	assert.Equal(t, chathub.MessageSystemError, got.Type)
	assertNothing(t, clientJuan)
	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestManager_RejectsEmptyText(t *testing.T) {
	store := new(MockStore)
	hub, _ := startHub(t, store, nil)

	clientAna := newMockClient(ana, threadKey)
	hub.RegisterCh <- clientAna
	hub.IncomingCh <- models.ChatMessage{ThreadKey: threadKey, Author: ana, Text: "   "}

	assert.Equal(t, chathub.MessageSystemError, receive(t, clientAna).Type)
	store.AssertNotCalled(t, "GetThread", mock.Anything, mock.Anything)
}

func TestManager_PublishesThroughBus(t *testing.T) {
	store := new(MockStore)
	store.On("GetThread", mock.Anything, threadKey).Return(anaJuanThread(), nil)
	store.On("Append", mock.Anything, mock.Anything).Return(nil)

	bus := new(MockBus)
	bus.On("Listen", mock.Anything, mock.Anything).Return()
	published := make(chan models.ChatMessage, 1)
	bus.On("PublishMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(1).(models.ChatMessage) }).
		Return(nil)

	hub, _ := startHub(t, store, bus)
	clientJuan := newMockClient(juan, threadKey)
	hub.RegisterCh <- clientJuan

	hub.IncomingCh <- models.ChatMessage{ThreadKey: threadKey, Author: ana, Text: "hola"}

	var msg models.ChatMessage
	select {
	case msg = <-published:
	case <-time.After(time.Second):
		t.Fatal("message was not published")
	}
	// Delivery waits for the bus echo.
	assertNothing(t, clientJuan)

	hub.PubSubCh <- msg
	assert.Equal(t, "hola", receive(t, clientJuan).Text)
}

func TestManager_DeliversLocallyWhenPublishFails(t *testing.T) {
	store := new(MockStore)
	store.On("GetThread", mock.Anything, threadKey).Return(anaJuanThread(), nil)
	store.On("Append", mock.Anything, mock.Anything).Return(nil)

	bus := new(MockBus)
	bus.On("Listen", mock.Anything, mock.Anything).Return()
	bus.On("PublishMessage", mock.Anything, mock.Anything).Return(assert.AnError)

	hub, _ := startHub(t, store, bus)
	clientJuan := newMockClient(juan, threadKey)
	hub.RegisterCh <- clientJuan

	hub.IncomingCh <- models.ChatMessage{ThreadKey: threadKey, Author: ana, Text: "hola"}
	assert.Equal(t, "hola", receive(t, clientJuan).Text)
}

func TestManager_StoreFailureIsReportedToAuthor(t *testing.T) {
	store := new(MockStore)
	store.On("GetThread", mock.Anything, threadKey).Return(nil, apperr.NotFound("thread %s", threadKey))

	hub, _ := startHub(t, store, nil)
	clientAna := newMockClient(ana, threadKey)
	hub.RegisterCh <- clientAna

	hub.IncomingCh <- models.ChatMessage{ThreadKey: threadKey, Author: ana, Text: "hola"}
	got := receive(t, clientAna)
	assert.Equal(t, chathub.MessageSystemError, got.Type)
	assert.Contains(t, got.Text, "not found")
}

func TestManager_UnregisterAndShutdownCloseClients(t *testing.T) {
	hub := chathub.NewManagerService(chathub.NewThreads(new(MockStore)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	a := newMockClient(ana, threadKey)
	b := newMockClient(juan, threadKey)
	hub.RegisterCh <- a
	hub.RegisterCh <- b
	hub.UnregisterCh <- a

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestManager_DropsSlowClient(t *testing.T) {
	store := new(MockStore)
	hub, cancel := startHub(t, store, nil)

	slow := &MockClient{userID: juan, threadKey: threadKey, RecvChannel: make(chan models.ChatMessage)}
	hub.RegisterCh <- slow
	hub.PubSubCh <- models.ChatMessage{ThreadKey: threadKey, Author: ana, Text: "hola", Type: chathub.MessageText}

	require.Eventually(t, slow.Closed, time.Second, 10*time.Millisecond)
	cancel()
}
