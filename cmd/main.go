package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"prontoapp/backend/internal/api/handler"
	"prontoapp/backend/internal/api/middleware"
	"prontoapp/backend/internal/api/router"
	"prontoapp/backend/internal/auth"
	"prontoapp/backend/internal/catalog"
	"prontoapp/backend/internal/chathub"
	"prontoapp/backend/internal/config"
	"prontoapp/backend/internal/feed"
	"prontoapp/backend/internal/logger"
	"prontoapp/backend/internal/marketplace"
	"prontoapp/backend/internal/notify"
	"prontoapp/backend/internal/roles"
	"prontoapp/backend/internal/storage"
	"prontoapp/backend/internal/telegram"
)

func setupDependencies(ctx context.Context, cfg config.Config) (*gorm.DB, *redis.Client, *storage.MongoClient) {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		fatal("failed to connect PostgreSQL", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		fatal("failed to connect Redis", err)
	}

	mongoClient, err := storage.NewMongoClient(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		fatal("failed to connect MongoDB", err)
	}
	if err := mongoClient.CreateIndexes(ctx); err != nil {
		fatal("failed to create chat indexes", err)
	}

	slog.Info("database, redis and mongo connections established")
	return db, rdb, mongoClient
}

// notificationGateway combines every configured delivery channel. Without
// any, events are only logged.
func notificationGateway(cfg config.Config) notify.Gateway {
	var gateways notify.Multi
	if cfg.Twilio.Enabled() {
		gateways = append(gateways, notify.NewWhatsAppGateway(cfg.Twilio))
	}
	if cfg.Telegram.Enabled() {
		announcer, err := telegram.NewAnnouncer(cfg.Telegram.BotToken, cfg.Telegram.ChannelID)
		if err != nil {
			slog.Error("telegram announcer disabled", "error", err)
		} else {
			gateways = append(gateways, announcer)
		}
	}
	if len(gateways) == 0 {
		return notify.LogGateway{}
	}
	return gateways
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration", err)
	}
	logger.Setup(cfg)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	slog.Info("starting ProntoApp backend", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Infrastructure
	db, rdb, mongoClient := setupDependencies(ctx, cfg)
	st := storage.NewStorageService(db)
	if err := st.AutoMigrate(); err != nil {
		fatal("failed to run migrations", err)
	}

	cat, err := catalog.Default()
	if err != nil {
		fatal("failed to load catalog", err)
	}

	// 2. Notifications
	dispatcher := notify.NewDispatcher(notificationGateway(cfg), config.NotificationQueueSize, config.NotificationTimeout)
	go dispatcher.Run()

	// 3. Marketplace core
	opts := []marketplace.Option{
		marketplace.WithNotifier(dispatcher),
		marketplace.WithQuoteFeed(feed.NewQuoteFeed(rdb)),
		marketplace.WithTrackingBaseURL(cfg.TrackingBaseURL),
	}
	var registryCatalog marketplace.Catalog
	if cfg.CatalogStrict {
		opts = append(opts, marketplace.WithCatalog(cat))
		registryCatalog = cat
	}
	requests := marketplace.NewRequestStore(st, opts...)
	matching := marketplace.NewMatchingIndex(st)
	registry := marketplace.NewRegistry(st, registryCatalog)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, config.DevTokenTTL)
	resolver := roles.NewResolver(jwtManager, st)

	// 4. Chat hub
	threads := chathub.NewThreads(storage.NewChatLog(mongoClient))
	hub := chathub.NewManagerService(threads, chathub.NewRedisBus(rdb))
	go hub.Run(ctx)

	// 5. HTTP
	quoteLimiter := middleware.NewLimiterStore(cfg.Limits.PerMinute, cfg.Limits.Burst, config.RateLimitCleanupInterval)
	defer quoteLimiter.Stop()

	h := handler.NewHandler(requests, matching, registry, cat, threads, hub, resolver)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.SetupRoutes(h, resolver, quoteLimiter),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("http server failed", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	<-hub.Done()
	dispatcher.Stop()
	if err := mongoClient.Close(shutdownCtx); err != nil {
		slog.Error("mongo disconnect failed", "error", err)
	}
	if err := rdb.Close(); err != nil {
		slog.Error("redis close failed", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
