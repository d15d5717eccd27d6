package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const requestTimeout = time.Minute

// NewRouter mounts the management API.
func NewRouter(h *Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:*", "https://localhost:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/health", h.Health)

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", h.GetWatchlist)
			r.Post("/{kind}", h.AddEntity)
			r.Delete("/{kind}/{slug}", h.RemoveEntity)
			r.Put("/{kind}/{slug}/price", h.SetPrice)
		})

		r.Post("/scan", h.TriggerScan)
		r.Get("/api/status", h.GetStatus)
		r.Get("/api/prices/{slug}", h.GetPrices)
		r.Get("/api/market", h.GetMarket)
	})

	// Imports wait on the scan worker, possibly behind a running scan.
	r.Group(func(r chi.Router) {
		r.Use(extendDeadline(h.importTimeout, h.logger))

		r.Post("/api/import", h.ImportAllSales)
		r.Post("/api/import/{slug}", h.ImportSales)
		r.Post("/api/commands", h.RunCommand)
	})

	return r
}

// extendDeadline replaces the server write timeout and the request deadline
// with d for the wrapped routes.
func extendDeadline(d time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deadline := time.Now().Add(d)
			err := http.NewResponseController(w).SetWriteDeadline(deadline)
			if err != nil && !errors.Is(err, http.ErrNotSupported) {
				logger.Warn("failed to extend write deadline", "path", r.URL.Path, "error", err)
			}

			ctx, cancel := context.WithDeadline(r.Context(), deadline)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
