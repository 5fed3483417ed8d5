package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"prontoapp/backend/internal/api/middleware"
	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/marketplace"
	"prontoapp/backend/internal/models"
)

type createRequestBody struct {
	Trade        string `json:"trade"`
	Specialty    string `json:"specialty"`
	Zone         string `json:"zone"`
	Description  string `json:"description"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
}

type submitQuoteBody struct {
	Amount            float64 `json:"amount"`
	Message           string  `json:"message"`
	Availability      string  `json:"availability"`
	EstimatedTime     string  `json:"estimated_time"`
	MaterialsIncluded bool    `json:"materials_included"`
}

// CreateRequest publishes a request for the calling requester. Contact fields
// default to the requester's profile.
func (h *Handler) CreateRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.Validation("invalid body: %v", err))
		return
	}
	id := identity(c)
	if body.ContactPhone == "" {
		body.ContactPhone = id.Requester.Phone
	}
	if body.ContactEmail == "" {
		body.ContactEmail = id.Email
	}

	ctx, cancel := callContext(c)
	defer cancel()
	req, err := h.Requests.CreateRequest(ctx, marketplace.NewRequest{
		RequesterID:  id.Requester.ID,
		Trade:        body.Trade,
		Specialty:    body.Specialty,
		Zone:         body.Zone,
		Description:  body.Description,
		ContactPhone: body.ContactPhone,
		ContactEmail: body.ContactEmail,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"request":       req,
		"tracking_link": h.Requests.TrackingLink(req.ID),
	})
}

func (h *Handler) ListMyRequests(c *gin.Context) {
	ctx, cancel := callContext(c)
	defer cancel()

	requests, err := h.Requests.ListRequestsByRequester(ctx, identity(c).Requester.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// GetRequest is visible to the owner and to providers the request matches
// by trade and zone, or who already quoted on it.
func (h *Handler) GetRequest(c *gin.Context) {
	ctx, cancel := callContext(c)
	defer cancel()

	req, err := h.Requests.GetRequest(ctx, c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	id := identity(c)
	if ownedBy(req, id) {
		c.JSON(http.StatusOK, req)
		return
	}
	if id.Role != models.RoleProvider {
		middleware.AbortForbidden(c, "request belongs to another requester")
		return
	}

	if req.Trade != id.Provider.Trade || req.Zone != id.Provider.Zone {
		quoted, err := h.Matching.HasProviderQuoted(ctx, req.ID, id.Provider.ID)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		if !quoted {
			middleware.AbortForbidden(c, "request is outside your trade and zone")
			return
		}
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) ListQuotes(c *gin.Context) {
	ctx, cancel := callContext(c)
	defer cancel()
	if _, ok := h.ownedRequest(ctx, c); !ok {
		return
	}

	quotes, err := h.Requests.ListQuotes(ctx, c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotes)
}

// StreamQuotes serves the live quotes of a request as server-sent events.
func (h *Handler) StreamQuotes(c *gin.Context) {
	checkCtx, cancel := callContext(c)
	_, ok := h.ownedRequest(checkCtx, c)
	cancel()
	if !ok {
		return
	}

	ctx := c.Request.Context()
	quotes, err := h.Requests.WatchQuotes(ctx, c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case q, open := <-quotes:
			if !open {
				return false
			}
			c.SSEvent("quote", q)
			return true
		}
	})
}

func (h *Handler) AcceptQuote(c *gin.Context) {
	h.ownerAction(c, func(ctx context.Context, requestID string) error {
		return h.Requests.AcceptQuote(ctx, requestID, c.Param("quoteID"))
	})
}

func (h *Handler) RejectQuote(c *gin.Context) {
	h.ownerAction(c, func(ctx context.Context, requestID string) error {
		return h.Requests.RejectQuote(ctx, requestID, c.Param("quoteID"))
	})
}

func (h *Handler) StartRequest(c *gin.Context) {
	h.ownerAction(c, h.Requests.StartRequest)
}

func (h *Handler) CancelRequest(c *gin.Context) {
	h.ownerAction(c, h.Requests.CancelRequest)
}

func (h *Handler) CompleteRequest(c *gin.Context) {
	h.ownerAction(c, h.Requests.CompleteRequest)
}

func (h *Handler) SubmitQuote(c *gin.Context) {
	var body submitQuoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.Validation("invalid body: %v", err))
		return
	}
	ctx, cancel := callContext(c)
	defer cancel()

	quote, err := h.Requests.SubmitQuote(ctx, marketplace.NewQuote{
		RequestID:         c.Param("id"),
		ProviderID:        identity(c).Provider.ID,
		Amount:            body.Amount,
		Message:           body.Message,
		Availability:      body.Availability,
		EstimatedTime:     body.EstimatedTime,
		MaterialsIncluded: body.MaterialsIncluded,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quote)
}

// ProviderBoard lists the requests matching the calling provider.
func (h *Handler) ProviderBoard(c *gin.Context) {
	ctx, cancel := callContext(c)
	defer cancel()

	board, err := h.Matching.ProviderBoard(ctx, identity(c).Provider.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *Handler) ListProviders(c *gin.Context) {
	ctx, cancel := callContext(c)
	defer cancel()

	providers, err := h.Matching.FindProvidersForRequest(ctx, c.Query("zone"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, providers)
}

// Tracking is the public page linked from notifications.
func (h *Handler) Tracking(c *gin.Context) {
	ctx, cancel := callContext(c)
	defer cancel()

	view, err := h.Requests.Tracking(ctx, c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ownerAction(c *gin.Context, action func(ctx context.Context, requestID string) error) {
	ctx, cancel := callContext(c)
	defer cancel()
	req, ok := h.ownedRequest(ctx, c)
	if !ok {
		return
	}
	if err := action(ctx, req.ID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	updated, err := h.Requests.GetRequest(ctx, req.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ownedRequest loads the :id request and aborts unless the caller owns it.
func (h *Handler) ownedRequest(ctx context.Context, c *gin.Context) (*models.Request, bool) {
	req, err := h.Requests.GetRequest(ctx, c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return nil, false
	}
	if !ownedBy(req, identity(c)) {
		middleware.AbortForbidden(c, "request belongs to another requester")
		return nil, false
	}
	return req, true
}

func ownedBy(req *models.Request, id models.Identity) bool {
	return id.Role == models.RoleRequester && id.Requester != nil && req.RequesterID == id.Requester.ID
}
