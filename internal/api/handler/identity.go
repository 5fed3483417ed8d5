package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"prontoapp/backend/internal/api/middleware"
	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/marketplace"
	"prontoapp/backend/internal/models"
)

type roleResponse struct {
	Email       string      `json:"email"`
	Role        models.Role `json:"role"`
	ID          string      `json:"id,omitempty"`
	DisplayName string      `json:"display_name"`
}

func (h *Handler) GetRole(c *gin.Context) {
	id := identity(c)
	c.JSON(http.StatusOK, roleResponse{
		Email:       id.Email,
		Role:        id.Role,
		ID:          id.ID(),
		DisplayName: id.DisplayName(),
	})
}

func (h *Handler) RegisterRequester(c *gin.Context) {
	var p marketplace.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		middleware.AbortWithError(c, apperr.Validation("invalid body: %v", err))
		return
	}
	ctx, cancel := callContext(c)
	defer cancel()

	requester, err := h.Registry.RegisterRequester(ctx, identity(c), p)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, requester)
}

func (h *Handler) RegisterProvider(c *gin.Context) {
	var p marketplace.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		middleware.AbortWithError(c, apperr.Validation("invalid body: %v", err))
		return
	}
	ctx, cancel := callContext(c)
	defer cancel()

	provider, err := h.Registry.RegisterProvider(ctx, identity(c), p)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, provider)
}

func (h *Handler) GetProfile(c *gin.Context) {
	id := identity(c)
	switch id.Role {
	case models.RoleRequester:
		c.JSON(http.StatusOK, id.Requester)
	case models.RoleProvider:
		c.JSON(http.StatusOK, id.Provider)
	default:
		middleware.AbortWithError(c, apperr.NotFound("%s has no profile", id.Email))
	}
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var p marketplace.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		middleware.AbortWithError(c, apperr.Validation("invalid body: %v", err))
		return
	}
	ctx, cancel := callContext(c)
	defer cancel()

	updated, err := h.Registry.UpdateProfile(ctx, identity(c), p)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if updated.Role == models.RoleProvider {
		c.JSON(http.StatusOK, updated.Provider)
		return
	}
	c.JSON(http.StatusOK, updated.Requester)
}
