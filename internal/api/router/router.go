package router

import (
	"github.com/gin-gonic/gin"

	"prontoapp/backend/internal/api/handler"
	"prontoapp/backend/internal/api/middleware"
	"prontoapp/backend/internal/models"
)

// SetupRoutes builds the gin engine with every HTTP route of the service.
func SetupRoutes(h *handler.Handler, resolver middleware.IdentityResolver, quoteLimiter *middleware.LimiterStore) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	r.GET("/health", h.Health)

	authed := middleware.Authenticate(resolver)
	requester := middleware.RequireRole(models.RoleRequester)
	provider := middleware.RequireRole(models.RoleProvider)
	registered := middleware.RequireRole(models.RoleRequester, models.RoleProvider)
	unregistered := middleware.RequireRole(models.RoleNone)

	r.GET("/ws", authed, registered, h.ServeChat)

	api := r.Group("/api/v1")
	{
		api.GET("/catalog", h.GetCatalog)
		api.GET("/tracking/:id", h.Tracking)

		api.GET("/role", authed, h.GetRole)
		api.POST("/requesters", authed, unregistered, h.RegisterRequester)
		api.POST("/providers", authed, unregistered, h.RegisterProvider)
		api.GET("/providers", authed, h.ListProviders)
		api.GET("/profile", authed, registered, h.GetProfile)
		api.PUT("/profile", authed, registered, h.UpdateProfile)

		requests := api.Group("/requests", authed)
		{
			requests.POST("", requester, h.CreateRequest)
			requests.GET("", requester, h.ListMyRequests)
			requests.GET("/:id", registered, h.GetRequest)
			requests.GET("/:id/quotes", requester, h.ListQuotes)
			requests.GET("/:id/quotes/stream", requester, h.StreamQuotes)
			requests.POST("/:id/quotes", provider, middleware.RateLimit(quoteLimiter), h.SubmitQuote)
			requests.POST("/:id/quotes/:quoteID/accept", requester, h.AcceptQuote)
			requests.DELETE("/:id/quotes/:quoteID", requester, h.RejectQuote)
			requests.POST("/:id/start", requester, h.StartRequest)
			requests.POST("/:id/cancel", requester, h.CancelRequest)
			requests.POST("/:id/complete", requester, h.CompleteRequest)
		}

		api.GET("/provider/requests", authed, provider, h.ProviderBoard)

		api.GET("/chats", authed, registered, h.ListChats)
		api.GET("/chats/:peer/messages", authed, registered, h.ChatMessages)
	}

	return r
}
