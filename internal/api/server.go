// Package api provides the JSON HTTP API for uniassist.
//
// Endpoints:
//
//	GET  /healthz               - liveness probe
//	GET  /readyz                - readiness probe (database ping)
//	POST /api/v1/ask            - answer a course question
//	GET  /api/v1/ask/stream     - answer a course question (SSE)
//	POST /api/v1/quiz/generate  - generate a quiz on a topic
//	POST /api/v1/quiz/grade     - grade a quiz submission
//	POST /api/v1/summarize      - summarize course material
//	POST /api/v1/documents      - upload and ingest a document
//	GET  /api/v1/stats          - knowledge base statistics
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uniassist/uniassist/internal/agent"
)

const (
	// DefaultAddr is the default listen address for the HTTP server.
	DefaultAddr = "127.0.0.1:8400"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to prevent Slowloris
	// connection exhaustion.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 60 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Streaming answers can take a while on slow models.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle connection timeout.
	IdleTimeout = 120 * time.Second
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Assistant   *agent.Assistant // Optional: nil disables ask/quiz/summarize endpoints (503)
	Flow        *agent.Flow      // Optional: nil disables the SSE streaming endpoint
	Pipeline    ingestRunner     // Optional: nil disables document upload (503)
	Counter     chunkCounter     // Optional: nil disables stats (503)
	Pool        *pgxpool.Pool    // Optional: nil makes /ready report unavailable
	UploadDir   string           // Directory for uploaded documents
	CORSOrigins []string         // Allowed origins for CORS
	IsDev       bool             // Disables HSTS header
	TrustProxy  bool             // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int              // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates the API server with all routes and middleware
// configured.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &assistantHandler{
		assistant: cfg.Assistant,
		flow:      cfg.Flow,
		logger:    logger,
	}
	dh := &documentsHandler{
		pipeline:  cfg.Pipeline,
		counter:   cfg.Counter,
		uploadDir: cfg.UploadDir,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/ask", ah.ask)
	mux.HandleFunc("GET /api/v1/ask/stream", ah.askStream)
	mux.HandleFunc("POST /api/v1/quiz/generate", ah.quizGenerate)
	mux.HandleFunc("POST /api/v1/quiz/grade", ah.quizGrade)
	mux.HandleFunc("POST /api/v1/summarize", ah.summarize)
	mux.HandleFunc("POST /api/v1/documents", dh.upload)
	mux.HandleFunc("GET /api/v1/stats", dh.stats)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes. CORS must be before RateLimit so preflight
	// OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack so load balancers are
	// never rate limited.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", health(logger))
	topMux.HandleFunc("GET /readyz", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux, logger: logger}
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is canceled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
