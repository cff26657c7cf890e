// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cryptocard-ledger/internal/api/handler"
	apimw "cryptocard-ledger/internal/api/middleware"
)

// RouterConfig gathers the handlers and collaborators the router mounts.
type RouterConfig struct {
	Transactions   *handler.TransactionHandler
	Admin          *handler.AdminHandler
	Watchlist      *handler.WatchlistHandler
	AlertStream    http.Handler
	Verifier       *apimw.TokenVerifier
	Idempotency    apimw.IdempotencyStore // nil disables Idempotency-Key replay
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.Authenticate(cfg.Verifier))

		// The alert stream is long-lived and must not inherit the request timeout.
		r.With(apimw.RequireAdmin).Get("/admin/alerts/ws", cfg.AlertStream.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(handler.DefaultTimeout))

			r.Route("/transactions", func(r chi.Router) {
				if cfg.Idempotency != nil {
					r.With(apimw.Idempotency(cfg.Idempotency, cfg.IdempotencyTTL, cfg.Logger)).Post("/", cfg.Transactions.Submit)
				} else {
					r.Post("/", cfg.Transactions.Submit)
				}
				r.Get("/{id}", cfg.Transactions.Get)
			})

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/transactions", cfg.Transactions.ListMine)
				r.Get("/holdings", cfg.Transactions.Holdings)
				r.Get("/watchlist", cfg.Watchlist.List)
				r.Put("/watchlist/{cryptoID}", cfg.Watchlist.Add)
				r.Delete("/watchlist/{cryptoID}", cfg.Watchlist.Remove)
			})

			r.Route("/admin/transactions", func(r chi.Router) {
				r.Use(apimw.RequireAdmin)
				r.Get("/", cfg.Admin.List)
				r.Post("/{id}/approve", cfg.Admin.Approve)
				r.Post("/{id}/cancel", cfg.Admin.Cancel)
			})
		})
	})

	return r
}
