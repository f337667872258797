package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rocketscienceinc/memorygame-backend/internal/config"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger *slog.Logger
	router chi.Router
	server *http.Server
}

// New - builds the router: ambient routes at the root and the game routes under the base path.
func New(logger *slog.Logger, conf *config.Config, game gameUseCase, metrics *Metrics) *Server {
	log := logger.With("component", "rest")

	handler := &gameHandler{
		logger:  log,
		game:    game,
		metrics: metrics,
	}

	session := &sessionCookie{
		name:   conf.Session.CookieName,
		maxAge: int(conf.Session.TTL.Seconds()),
		secure: conf.Session.SecureCookie,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metrics.instrument)
	r.Use(logRequests(log))
	r.Use(recoverer(log))

	// set before Route so the mounted subrouter inherits them
	r.NotFound(handler.handleNotFound)
	r.MethodNotAllowed(handler.handleMethodNotAllowed)

	r.Get("/ping", pingHandler)
	r.Method(http.MethodGet, "/metrics", metrics.handler())

	r.Route(conf.BasePath, func(r chi.Router) {
		if conf.HTTP.HandlerTimeout > 0 {
			r.Use(chimw.Timeout(conf.HTTP.HandlerTimeout))
		}
		r.Use(session.middleware)
		r.Use(jsonContentType)

		for _, method := range []string{http.MethodGet, http.MethodPost} {
			r.MethodFunc(method, "/start", handler.handleStart)
			r.MethodFunc(method, "/move", handler.handleMove)
			r.MethodFunc(method, "/score", handler.handleScore)
		}
	})

	return &Server{
		logger: log,
		router: r,
		server: &http.Server{
			Addr:         ":" + conf.HTTPPort,
			Handler:      r,
			ReadTimeout:  conf.HTTP.ReadTimeout,
			WriteTimeout: conf.HTTP.WriteTimeout,
			IdleTimeout:  conf.HTTP.IdleTimeout,
		},
	}
}

// Handler - exposes the router, used by tests.
func (that *Server) Handler() http.Handler {
	return that.router
}

// Start - serves until ctx is canceled, then shuts down gracefully.
func (that *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := that.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	that.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := that.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
