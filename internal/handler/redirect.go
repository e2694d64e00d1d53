package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RedirectHandler resolves a short code and redirects. Click accounting
// happens after the lookup, off the request path.
func (h *Handler) RedirectHandler(rw http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "shortCode")

	longURL, err := h.shortener.Resolve(r.Context(), code, r.UserAgent(), r.Referer())
	if err != nil {
		h.writeError(rw, err)
		return
	}

	http.Redirect(rw, r, longURL, http.StatusMovedPermanently)
}
