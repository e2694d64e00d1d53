package handler

import (
	"net/http"
	"strconv"

	"github.com/shortkit/shortkit/internal/middleware"
)

// ListLinksHandler returns one page of the caller's links with derived
// click totals and pagination metadata.
func (h *Handler) ListLinksHandler(rw http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		h.writeErrorMessage(rw, http.StatusUnauthorized, "Access denied")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	linkPage, err := h.shortener.ListLinks(r.Context(), account.ID, page, limit)
	if err != nil {
		h.writeError(rw, err)
		return
	}

	h.writeData(rw, http.StatusOK, "", linkPage)
}
