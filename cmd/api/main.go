package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkhaven/inkhaven-backend/internal/api"
	"github.com/inkhaven/inkhaven-backend/internal/auth"
	"github.com/inkhaven/inkhaven-backend/internal/blog"
	"github.com/inkhaven/inkhaven-backend/internal/config"
	"github.com/inkhaven/inkhaven-backend/internal/events"
	"github.com/inkhaven/inkhaven-backend/internal/log"
	"github.com/inkhaven/inkhaven-backend/internal/metrics"
	"github.com/inkhaven/inkhaven-backend/internal/render"
	"github.com/inkhaven/inkhaven-backend/pkg/kv"
	_ "github.com/inkhaven/inkhaven-backend/pkg/kv/memory"
	_ "github.com/inkhaven/inkhaven-backend/pkg/kv/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting Inkhaven API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"store", cfg.Store.Backend,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("inkhaven-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Setup content store
	store, err := kv.NewStoreFromConfig(kv.Config{
		Backend:         kv.Backend(cfg.Store.Backend),
		RedisURL:        cfg.Store.RedisURL,
		FailoverEnabled: cfg.Store.FailoverEnabled,
		ProbeInterval:   cfg.Store.ProbeInterval,
		Logger: func(msg string, fields ...any) {
			logger.Infow(msg, fields...)
		},
	})
	if err != nil {
		logger.Fatalw("Failed to create content store", "error", err)
	}
	defer store.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		pingCancel()
		logger.Fatalw("Content store ping failed", "error", err)
	}
	pingCancel()
	logger.Infow("Content store ready")

	// Setup repositories
	posts := blog.NewPostRepository(store, logger, metricsObj)
	comments := blog.NewCommentRepository(store, logger, metricsObj)
	images := blog.NewImageRepository(store, logger, metricsObj)

	if cfg.Store.Seed {
		seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := blog.EnsureSeeded(seedCtx, posts, logger); err != nil {
			logger.Warnw("Seeding failed", "error", err)
		}
		seedCancel()
	}

	// Setup admin auth
	authMgr := auth.NewManager(store, auth.Config{
		Username:      cfg.Admin.Username,
		Password:      cfg.Admin.Password,
		PasswordHash:  cfg.Admin.PasswordHash,
		SessionTTL:    cfg.Admin.SessionTTL,
		SecureCookies: cfg.IsProd(),
	}, logger)

	// Setup event hub and streaming transports
	hub := events.NewHub(logger, metricsObj)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// Setup API handler and middleware
	handler := api.NewHandler(api.HandlerConfig{
		Posts:      posts,
		Comments:   comments,
		Images:     images,
		Auth:       authMgr,
		Hub:        hub,
		SSEHandler: events.NewSSEHandler(hub),
		WSHandler:  events.NewWSHandler(hub, cfg.Security.CORSAllowedOrigins),
		Renderer:   render.New(),
		Store:      store,
		Logger:     logger,
		Metrics:    metricsObj,
		MaxUpload:  cfg.Uploads.MaxBytes,
		AdminUser:  cfg.Admin.Username,
	})
	middleware := api.NewMiddleware(logger, metricsObj, authMgr)

	router := handler.Routes(middleware, api.RouteConfig{
		CORSOrigins:    cfg.Security.CORSAllowedOrigins,
		RateLimitRPM:   cfg.Security.RateLimitRPM,
		LoginRateRPM:   cfg.Security.LoginRateLimitRPM,
		MetricsHandler: metricsHandler,
	})

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Setup HTTP server
	server := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: SSE connections stay open indefinitely
		IdleTimeout: 60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		hubCancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
