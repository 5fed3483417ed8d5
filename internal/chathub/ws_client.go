package chathub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"prontoapp/backend/internal/config"
	"prontoapp/backend/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Room for the JSON envelope around the largest accepted text.
	maxMessageSize = config.ChatMaxMessageBytes + 512
)

// inbound is what a browser sends over the socket.
type inbound struct {
	Text string `json:"text"`
}

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	UserID    string
	ThreadKey string
	Conn      *websocket.Conn
	Hub       *ManagerService
	Send      chan models.ChatMessage

	closeOnce sync.Once
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, userID, threadKey string) *WebSocketClient {
	return &WebSocketClient{
		UserID:    userID,
		ThreadKey: threadKey,
		Conn:      conn,
		Hub:       hub,
		Send:      make(chan models.ChatMessage, 32),
	}
}

func (c *WebSocketClient) GetUserID() string                         { return c.UserID }
func (c *WebSocketClient) GetThreadKey() string                      { return c.ThreadKey }
func (c *WebSocketClient) GetSendChannel() chan<- models.ChatMessage { return c.Send }

func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump; the read pump ends when the connection closes.
// Only the hub calls Close.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.Hub.UnregisterCh <- c:
		case <-c.Hub.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("chat socket read failed", "user", c.UserID, "error", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			slog.Debug("undecodable chat frame", "user", c.UserID, "error", err)
			continue
		}

		msg := models.ChatMessage{
			ThreadKey: c.ThreadKey,
			Author:    c.UserID,
			Text:      in.Text,
			Type:      MessageText,
		}
		select {
		case c.Hub.IncomingCh <- msg:
		case <-c.Hub.Done():
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
