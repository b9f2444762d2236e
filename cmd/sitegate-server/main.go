package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/existflow/sitegate/internal/auth"
	"github.com/existflow/sitegate/internal/config"
	"github.com/existflow/sitegate/internal/db"
	"github.com/existflow/sitegate/internal/logger"
	"github.com/existflow/sitegate/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logConfig := logger.DefaultConfig()
	logConfig.Level = logger.ParseLevel(cfg.Log.Level)
	logConfig.FilePath = cfg.Log.File
	logConfig.Console = cfg.Log.Console
	if err := logger.Init(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	var opts []server.Option

	if cfg.OTP.SingleUse && cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		guard, err := auth.NewRedisReplayGuard(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer guard.Close()
		opts = append(opts, server.WithReplayGuard(guard))
		logger.Info("OTP replay guard backed by redis")
	}

	if cfg.Audit.Driver != "" {
		store, err := db.Open(cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			log.Fatalf("Failed to open audit store: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Error closing audit store", logger.F("error", err))
			}
		}()
		opts = append(opts, server.WithAuditor(store))
		logger.Info("Audit store enabled", logger.F("driver", cfg.Audit.Driver))
	}

	srv, err := server.New(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if !cfg.Access.Enabled {
		logger.Warn("Access control is disabled; the site is public")
	} else if !cfg.EmailConfigured() {
		logger.Warn("Email is not configured; OTP logins will fail once the start date passes")
	}

	go func() {
		logger.Info("sitegate server starting",
			logger.F("port", cfg.Port),
			logger.F("site_dir", cfg.SiteDir),
			logger.F("access_enabled", cfg.Access.Enabled))
		if err := srv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", logger.F("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", logger.F("error", err))
	}
}
