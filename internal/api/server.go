package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lila-deepq/deepq/internal/api/middleware"
	"github.com/lila-deepq/deepq/internal/apiauth"
	"github.com/lila-deepq/deepq/internal/ingestion"
	"github.com/lila-deepq/deepq/internal/queue"
)

// Server is the Worker API HTTP server: the acquire/abort/analysis/key/status
// endpoints workers speak, plus the upstream report-ingest endpoint.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	config     ServerConfig
	startTime  time.Time

	queue       *queue.Queue
	games       *ingestion.GameStore
	reports     *ingestion.ReportStore
	ingestor    *ingestion.Ingestor
	authStore   *apiauth.Store
	rateLimiter middleware.RateLimiter
}

// NewServer wires the Worker API's routes and middleware chain.
// rateLimiter may be nil, disabling rate limiting (used by tests).
func NewServer(
	cfg ServerConfig,
	q *queue.Queue,
	games *ingestion.GameStore,
	reports *ingestion.ReportStore,
	ingestor *ingestion.Ingestor,
	authStore *apiauth.Store,
	rateLimiter middleware.RateLimiter,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	server := &Server{
		logger:      logger,
		config:      cfg,
		queue:       q,
		games:       games,
		reports:     reports,
		ingestor:    ingestor,
		authStore:   authStore,
		rateLimiter: rateLimiter,
	}

	server.setupRoutes(mux)

	if rateLimiter != nil {
		logger.Info("rate limiting middleware enabled")
	} else {
		logger.Warn("rate limiter not configured - rate limiting middleware disabled")
	}

	// Middleware order: correlation IDs first so every later log line can
	// carry one, recovery next so a panic anywhere downstream still gets a
	// well-formed response, then auth (which only rejects a bad credential,
	// not a missing one — see middleware.Authenticate), then rate limiting
	// (which needs auth's identity to apply the per-key tier), then request
	// logging last so it reports the outcome of everything above it.
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithAuth(authStore, logger),
		middleware.WithRateLimit(rateLimiter, logger),
		middleware.WithRequestLogger(logger),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Bind,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until shutdown. It handles
// graceful shutdown on SIGINT and SIGTERM.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting worker api server",
			slog.String("address", s.config.Bind),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed to start",
				slog.String("address", s.config.Bind),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

// shutdown gracefully drains in-flight requests within config.ShutdownTimeout,
// then closes the rate limiter's background cleanup goroutine, if any.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("initiating server shutdown", slog.Duration("shutdown_timeout", s.config.ShutdownTimeout))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown failed", slog.String("error", err.Error()))

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if closer, ok := s.rateLimiter.(interface{ Close() }); ok {
		closer.Close()
	}

	s.logger.Info("server shutdown completed successfully")

	return nil
}
