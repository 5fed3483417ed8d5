package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"prontoapp/backend/internal/api/middleware"
	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/chathub"
	"prontoapp/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict to the web front-end origin once it has a fixed domain.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeChat upgrades to a websocket attached to the thread between the caller
// and the peer query parameter.
func (h *Handler) ServeChat(c *gin.Context) {
	thread, ok := h.openThread(c, c.Query("peer"))
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, identity(c).Email, thread.Key)
	select {
	case h.Hub.RegisterCh <- client:
		client.Run()
	case <-h.Hub.Done():
		conn.Close()
	}
}

// ChatMessages returns the history of the thread with :peer, oldest first.
func (h *Handler) ChatMessages(c *gin.Context) {
	thread, ok := h.openThread(c, c.Param("peer"))
	if !ok {
		return
	}
	ctx, cancel := callContext(c)
	defer cancel()

	history, err := h.Threads.History(ctx, thread.Key, identity(c).Email)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": thread, "messages": history})
}

func (h *Handler) ListChats(c *gin.Context) {
	ctx, cancel := callContext(c)
	defer cancel()

	threads, err := h.Threads.Mine(ctx, identity(c).Email)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, threads)
}

// openThread checks that the caller and peer sit on opposite sides of the
// marketplace and returns their thread.
func (h *Handler) openThread(c *gin.Context, peerEmail string) (*models.ChatThread, bool) {
	me := identity(c)
	peerEmail = models.NormalizeEmail(peerEmail)
	if peerEmail == "" {
		middleware.AbortWithError(c, apperr.Validation("peer is required"))
		return nil, false
	}

	ctx, cancel := callContext(c)
	defer cancel()

	peer, err := h.Identities.ResolveEmail(ctx, peerEmail)
	if err != nil {
		middleware.AbortWithError(c, err)
		return nil, false
	}
	if peer.Role == models.RoleNone {
		middleware.AbortWithError(c, apperr.NotFound("%s is not registered", peerEmail))
		return nil, false
	}
	if peer.Role == me.Role {
		middleware.AbortForbidden(c, "chats connect a requester with a provider")
		return nil, false
	}

	thread, err := h.Threads.Open(ctx, me.Email, peer.Email)
	if err != nil {
		middleware.AbortWithError(c, err)
		return nil, false
	}
	return thread, true
}
