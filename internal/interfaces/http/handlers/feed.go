package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/meghal86/smart-stake-hunter/internal/application"
	"github.com/meghal86/smart-stake-hunter/internal/etag"
	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

// Feed handles GET /v1/hunter/feed.
func (h *Handlers) Feed(w http.ResponseWriter, r *http.Request) {
	query := application.FeedQuery{
		Wallet:       r.URL.Query().Get("wallet"),
		Cursor:       r.URL.Query().Get("cursor"),
		Types:        splitParam(r.URL.Query().Get("type")),
		Chains:       splitParam(r.URL.Query().Get("chains")),
		Search:       r.URL.Query().Get("search"),
		Sort:         persistence.SortKey(r.URL.Query().Get("sort")),
		EligibleOnly: r.URL.Query().Get("eligible") == "true",
	}

	if raw := r.URL.Query().Get("trust_min"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 || v > 100 {
			h.writeError(w, r, http.StatusBadRequest, "invalid_trust_min",
				"trust_min must be an integer between 0 and 100")
			return
		}
		query.TrustMin = v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			h.writeError(w, r, http.StatusBadRequest, "invalid_limit",
				"limit must be a positive integer")
			return
		}
		query.Limit = v
	}

	page, err := h.feed.GetFeedPage(r.Context(), query)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrBadWallet):
			h.writeError(w, r, http.StatusBadRequest, "invalid_wallet", err.Error())
		case errors.Is(err, application.ErrBadCursor):
			h.writeError(w, r, http.StatusBadRequest, "invalid_cursor", err.Error())
		case errors.Is(err, application.ErrBadSort):
			h.writeError(w, r, http.StatusBadRequest, "invalid_sort", err.Error())
		case errors.Is(err, application.ErrStoreUnavailable):
			h.writeError(w, r, http.StatusServiceUnavailable, "store_unavailable",
				"The opportunity store is temporarily unavailable")
		default:
			h.log.Error().Err(err).Msg("feed query failed")
			h.writeError(w, r, http.StatusInternalServerError, "internal_error",
				"Failed to build the feed page")
		}
		return
	}

	w.Header().Set("ETag", page.ETag)
	if etag.Compare(r.Header.Get("If-None-Match"), page.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
