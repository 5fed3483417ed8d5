package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/logger"
	"prontoapp/backend/internal/models"
)

const identityKey = "identity"

// IdentityResolver turns a bearer token into a marketplace identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (models.Identity, error)
}

// Authenticate requires a verified identity. The token comes from the
// Authorization header, or from the token query parameter for browsers that
// cannot set headers on websocket and EventSource requests.
func Authenticate(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, apperr.New(apperr.ErrAuth, "authorization token missing"))
			return
		}

		id, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(identityKey, id)
		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{Identity: id.Email})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			AbortWithError(c, apperr.New(apperr.ErrAuth, "no verified identity"))
			return
		}
		if !slices.Contains(roles, id.Role) {
			AbortForbidden(c, "this operation is not available for role "+string(id.Role))
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}
