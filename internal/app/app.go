// Package app provides application initialization and dependency wiring.
//
// App is the container that orchestrates all components: it runs
// migrations, opens the database pool, initializes Genkit with the
// configured AI provider, and builds the knowledge store, assistant
// and ingest pipeline.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uniassist/uniassist/internal/agent"
	"github.com/uniassist/uniassist/internal/config"
	"github.com/uniassist/uniassist/internal/ingest"
	"github.com/uniassist/uniassist/internal/knowledge"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	Knowledge *knowledge.Store
	Assistant *agent.Assistant
	Flow      *agent.Flow
	Pipeline  *ingest.Pipeline

	otelCleanup func()
	cancel      context.CancelFunc
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.cancel != nil {
		a.cancel()
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		slog.Debug("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
