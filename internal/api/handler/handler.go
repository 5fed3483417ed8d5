package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"prontoapp/backend/internal/api/middleware"
	"prontoapp/backend/internal/catalog"
	"prontoapp/backend/internal/chathub"
	"prontoapp/backend/internal/config"
	"prontoapp/backend/internal/marketplace"
	"prontoapp/backend/internal/models"
)

// IdentityLookup resolves an email to its marketplace role.
type IdentityLookup interface {
	ResolveEmail(ctx context.Context, email string) (models.Identity, error)
}

// Handler holds the services behind the HTTP surface.
type Handler struct {
	Requests   *marketplace.RequestStore
	Matching   *marketplace.MatchingIndex
	Registry   *marketplace.Registry
	Catalog    *catalog.Catalog
	Threads    *chathub.Threads
	Hub        *chathub.ManagerService
	Identities IdentityLookup
}

func NewHandler(
	requests *marketplace.RequestStore,
	matching *marketplace.MatchingIndex,
	registry *marketplace.Registry,
	cat *catalog.Catalog,
	threads *chathub.Threads,
	hub *chathub.ManagerService,
	identities IdentityLookup,
) *Handler {
	return &Handler{
		Requests:   requests,
		Matching:   matching,
		Registry:   registry,
		Catalog:    cat,
		Threads:    threads,
		Hub:        hub,
		Identities: identities,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetCatalog lists trades with their specialties, and zones.
func (h *Handler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"trades": h.Catalog.Trades(),
		"zones":  h.Catalog.Zones(),
	})
}

// callContext bounds a single storage-backed call.
func callContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), config.StorageCallTimeout)
}

func identity(c *gin.Context) models.Identity {
	id, _ := middleware.IdentityFrom(c)
	return id
}
