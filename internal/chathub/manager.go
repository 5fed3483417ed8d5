package chathub

import (
	"context"
	"log/slog"

	"prontoapp/backend/internal/config"
	"prontoapp/backend/internal/logger"
	"prontoapp/backend/internal/models"
)

// Bus carries persisted messages between hub instances. Every instance,
// including the one that published, delivers what it receives from Listen.
type Bus interface {
	PublishMessage(ctx context.Context, msg models.ChatMessage) error
	Listen(ctx context.Context, out chan<- models.ChatMessage)
}

// ManagerService is the chat hub. A single goroutine (Run) owns the set of
// connected clients; everything else talks to it through channels.
type ManagerService struct {
	Clients map[Client]struct{}

	// Channels
	IncomingCh   chan models.ChatMessage
	RegisterCh   chan Client
	UnregisterCh chan Client
	PubSubCh     chan models.ChatMessage

	Threads *Threads
	Bus     Bus

	done chan struct{}
}

// NewManagerService builds a hub. bus may be nil, in which case messages are
// only delivered to clients connected to this instance.
func NewManagerService(threads *Threads, bus Bus) *ManagerService {
	return &ManagerService{
		Clients:      make(map[Client]struct{}),
		IncomingCh:   make(chan models.ChatMessage),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		PubSubCh:     make(chan models.ChatMessage, 64),
		Threads:      threads,
		Bus:          bus,
		done:         make(chan struct{}),
	}
}

// Done is closed once Run has returned.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

// Run processes hub events until ctx is cancelled, then closes every client.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "chathub"})
	if m.Bus != nil {
		go m.Bus.Listen(ctx, m.PubSubCh)
	}

	for {
		select {
		case <-ctx.Done():
			for c := range m.Clients {
				delete(m.Clients, c)
				c.Close()
			}
			return

		case c := <-m.RegisterCh:
			m.Clients[c] = struct{}{}
			slog.DebugContext(ctx, "chat client registered", "user", c.GetUserID(), "thread", c.GetThreadKey())

		case c := <-m.UnregisterCh:
			m.remove(c)

		case msg := <-m.IncomingCh:
			m.handleIncoming(ctx, msg)

		case msg := <-m.PubSubCh:
			m.deliver(msg, "")
		}
	}
}

func (m *ManagerService) handleIncoming(ctx context.Context, in models.ChatMessage) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Identity: in.Author})
	callCtx, cancel := context.WithTimeout(ctx, config.StorageCallTimeout)
	defer cancel()

	msg, err := m.Threads.Append(callCtx, in.ThreadKey, in.Author, in.Text)
	if err != nil {
		slog.InfoContext(ctx, "chat message rejected", "thread", in.ThreadKey, "error", err)
		m.deliver(models.ChatMessage{
			ThreadKey: in.ThreadKey,
			Author:    in.Author,
			Text:      err.Error(),
			Type:      MessageSystemError,
		}, in.Author)
		return
	}

	if m.Bus == nil {
		m.deliver(*msg, "")
		return
	}
	if err := m.Bus.PublishMessage(callCtx, *msg); err != nil {
		// The message is stored; deliver it here so at least local peers see it.
		slog.WarnContext(ctx, "chat publish failed", "thread", msg.ThreadKey, "error", err)
		m.deliver(*msg, "")
	}
}

// deliver sends msg to the clients attached to its thread. When onlyUser is
// set, other participants are skipped. Clients that cannot keep up are dropped.
func (m *ManagerService) deliver(msg models.ChatMessage, onlyUser string) {
	for c := range m.Clients {
		if c.GetThreadKey() != msg.ThreadKey {
			continue
		}
		if onlyUser != "" && c.GetUserID() != onlyUser {
			continue
		}
		select {
		case c.GetSendChannel() <- msg:
		default:
			m.remove(c)
		}
	}
}

func (m *ManagerService) remove(c Client) {
	if _, ok := m.Clients[c]; !ok {
		return
	}
	delete(m.Clients, c)
	c.Close()
}
