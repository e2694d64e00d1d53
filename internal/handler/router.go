package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shortkit/shortkit/internal/middleware"
)

func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.GzipMiddleware)

	r.Get("/health", h.HealthHandler)

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.limiter.Limit("auth", authRateMax, authRateWindow))
			r.Post("/register", h.RegisterHandler)
			r.Post("/login", h.LoginHandler)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.authMW.Require)
			r.Post("/logout", h.LogoutHandler)
			r.Get("/profile", h.ProfileHandler)
		})
	})

	r.Route("/api/url", func(r chi.Router) {
		r.With(h.limiter.Limit("general", generalRateMax, generalRateWindow)).
			Post("/guest-shorten", h.GuestShortenHandler)

		r.Group(func(r chi.Router) {
			r.Use(h.authMW.Require)
			r.With(h.limiter.Limit("url", urlRateMax, urlRateWindow)).
				Post("/shorten", h.ShortenHandler)
			r.Get("/my-urls", h.ListLinksHandler)
			r.Get("/stats/{shortCode}", h.LinkStatsHandler)
			r.Delete("/{shortCode}", h.DeleteLinkHandler)
		})
	})

	r.With(h.limiter.Limit("general", generalRateMax, generalRateWindow)).
		Get("/{shortCode}", h.RedirectHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	return r
}
