package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bananalabs-oss/hatcher/internal/config"
	"github.com/bananalabs-oss/hatcher/internal/database"
	"github.com/bananalabs-oss/hatcher/internal/invites"
	"github.com/bananalabs-oss/hatcher/internal/logger"
	"github.com/bananalabs-oss/hatcher/internal/router"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	log := logger.New("hatcher", cfg.Env)
	defer log.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Infow("starting hatcher",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.DatabaseURL,
		"redis", cfg.RedisURL != "",
		"internal_routes", cfg.ServiceToken != "",
	)

	ctx := context.Background()

	if path, ok := strings.CutPrefix(cfg.DatabaseURL, "sqlite://"); ok && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Fatalw("failed to create database directory", "error", err)
		}
	}

	db, err := database.Connect(cfg.DatabaseURL, log.SugaredLogger)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, log.SugaredLogger); err != nil {
		log.Fatalw("failed to run migrations", "error", err)
	}

	opts := router.Options{
		ServiceToken: cfg.ServiceToken,
		CORSOrigins:  cfg.CORSOrigins,
	}
	if cfg.RedisURL != "" {
		client, err := invites.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer client.Close()
		opts.Invites = invites.NewRedisStore(client)
		log.Infow("invites stored in redis")
	}

	r := router.Setup(db, log, opts)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Infow("hatcher listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("shutting down hatcher")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Infow("hatcher stopped")
}
