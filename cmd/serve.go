package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/uniassist/uniassist/internal/api"
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	addr, err := parseServeAddr()
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting HTTP API server", "version", AppVersion)

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	cfg := a.Config
	srv := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Assistant:   a.Assistant,
		Flow:        a.Flow,
		Pipeline:    a.Pipeline,
		Counter:     a.Knowledge,
		Pool:        a.DBPool,
		UploadDir:   filepath.Join(cfg.DataDir, "uploads"),
		CORSOrigins: cfg.CORSOrigins,
		IsDev:       cfg.PostgresSSLMode == "disable",
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/v1/*",
		"health", "/healthz, /readyz",
	)

	return srv.Run(ctx, addr)
}
