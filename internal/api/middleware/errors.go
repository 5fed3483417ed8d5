package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"prontoapp/backend/internal/apperr"
)

// StatusFor maps an error kind to the HTTP status returned to clients.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError writes err as a JSON body with the matching status. Internal
// errors are logged and hidden from the client.
func AbortWithError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// AbortForbidden rejects a verified identity that may not touch the resource.
func AbortForbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msg})
}
