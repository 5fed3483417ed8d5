package config

import "time"

const (
	// Notifications
	DefaultTrackingBaseURL        = "https://prontoap.com/seguimiento/"
	DefaultWhatsAppFrom           = "whatsapp:+5491123276529"
	DefaultRequestCreatedTemplate = "HXa16dc8f6ebdea4cae19852a1b0de9a4f" // pedido_recibido
	DefaultQuoteResponseTemplate  = "HX35ed17d6f30d7dce83c1940e14538578" // proveedor_respuesta
	NotificationQueueSize         = 256
	NotificationTimeout           = 10 * time.Second

	// Storage
	StorageCallTimeout = 5 * time.Second

	// Live quotes: re-check storage at least this often even without a wake-up.
	QuoteWatchPollInterval = 5 * time.Second
	QuoteWatchBuffer       = 16

	// Identity tokens minted by the admin CLI
	DevTokenTTL = 72 * time.Hour

	// Chat
	ChatHistoryLimit    = 200
	ChatMaxMessageBytes = 4096

	// Rate limiting (quote submission, chat)
	DefaultRateLimitPerMinute = 30
	DefaultRateLimitBurst     = 10
	RateLimitCleanupInterval  = time.Minute
	RateLimitIdleTTL          = 10 * time.Minute
)
