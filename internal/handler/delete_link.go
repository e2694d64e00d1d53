package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shortkit/shortkit/internal/middleware"
)

// DeleteLinkHandler soft-deletes one of the caller's links. The code stays
// reserved forever so a later third party cannot hijack old redirects.
func (h *Handler) DeleteLinkHandler(rw http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		h.writeErrorMessage(rw, http.StatusUnauthorized, "Access denied")
		return
	}

	code := chi.URLParam(r, "shortCode")

	if err := h.shortener.DeleteLink(r.Context(), account.ID, code); err != nil {
		h.writeError(rw, err)
		return
	}

	h.writeData(rw, http.StatusOK, "URL deleted successfully", nil)
}
