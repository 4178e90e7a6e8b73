// Package server exposes the banking backend over HTTP: a chi router,
// request/response shaping, and the mapping from the error taxonomy to
// status codes.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
)

// Router assembles the full route tree. rdb enables the idempotency
// middleware on transaction endpoints; nil disables it.
func Router(h *Handlers, rdb *redis.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.handleRegister)
			r.Post("/login", h.handleLogin)
		})

		// Everything below requires an authenticated principal.
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware)

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", h.handleListAccounts)
				r.Post("/", h.handleCreateAccount)
			})

			r.Route("/transactions", func(r chi.Router) {
				if rdb != nil {
					r.Use(Idempotency(rdb))
				}
				r.Post("/deposit", h.handleDeposit)
				r.Post("/withdraw", h.handleWithdraw)
				r.Post("/transfer", h.handleTransfer)
				r.Get("/history", h.handleHistory)
			})
		})
	})

	return r
}
