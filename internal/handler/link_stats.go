package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shortkit/shortkit/internal/middleware"
)

// LinkStatsHandler returns one of the caller's links with its reconciled
// click total.
func (h *Handler) LinkStatsHandler(rw http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		h.writeErrorMessage(rw, http.StatusUnauthorized, "Access denied")
		return
	}

	code := chi.URLParam(r, "shortCode")

	stats, err := h.shortener.GetLinkStats(r.Context(), account.ID, code)
	if err != nil {
		h.writeError(rw, err)
		return
	}

	h.writeData(rw, http.StatusOK, "", stats)
}
