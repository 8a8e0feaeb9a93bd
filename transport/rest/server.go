package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger  *slog.Logger
	stats   statsGetter
	checker map[string]Checker
}

func New(logger *slog.Logger, stats statsGetter, checker map[string]Checker) *Server {
	return &Server{
		logger:  logger.With("component", "rest"),
		stats:   stats,
		checker: checker,
	}
}

// Routes - builds the HTTP API.
func (that *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/ping", pingHandler)
	router.Get("/healthz", that.handleHealth)

	router.Route("/players/{playerID}/stats", func(r chi.Router) {
		r.Get("/", that.handleBestStats)
		r.Get("/{gridSize}", that.handleBestRecord)
	})

	return router
}

// Start - serves the HTTP API until ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
