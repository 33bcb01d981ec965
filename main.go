package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"visamonk/gateway/auth"
	"visamonk/gateway/config"
	"visamonk/gateway/database"
	"visamonk/gateway/fallback"
	"visamonk/gateway/handlers"
	"visamonk/gateway/store"
	"visamonk/gateway/worker"
)

// main wires config, store, worker pool, and routes, then serves.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfgPath := os.Getenv("GATEWAY_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	db, err := database.Init(cfg.Paths.DatabasePath)
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	timeout, err := cfg.WorkerTimeout()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	pool, err := worker.NewProcessPool(cfg.Workers.Commands, timeout, logger)
	if err != nil {
		logger.Error("worker preflight failed", "error", err)
		os.Exit(1)
	}

	ttl, err := cfg.SessionTTL()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	gw := auth.New(cfg.Auth.JWTSecret, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, ttl)
	st := store.New(db, pool, cfg.Paths.DataDir, cfg.Paths.ScrapedDir, cfg.Paths.VectorstoreDir, logger)
	fb := fallback.New()

	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestID(), handlers.RequestLogger(logger))

	api := r.Group("/api")
	handlers.RegisterAuthRoutes(api, gw)
	handlers.RegisterChatRoutes(api, pool, fb, st, logger)
	handlers.RegisterTTSRoutes(api, pool, logger)
	handlers.RegisterContactRoutes(api, st)
	handlers.RegisterAnalyticsRoutes(api, gw, st)
	handlers.RegisterAdminRoutes(api, gw, st)

	logger.Info("gateway listening", "addr", cfg.Server.Addr)
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
