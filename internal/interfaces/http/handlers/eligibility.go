package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meghal86/smart-stake-hunter/internal/application"
	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

// Eligibility handles GET /v1/hunter/opportunities/{id}/eligibility.
func (h *Handlers) Eligibility(w http.ResponseWriter, r *http.Request) {
	opportunityID := mux.Vars(r)["id"]
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_wallet",
			"A wallet query parameter is required")
		return
	}

	verdict, err := h.eligibility.Check(r.Context(), wallet, opportunityID)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrBadWallet):
			h.writeError(w, r, http.StatusBadRequest, "invalid_wallet", err.Error())
		case errors.Is(err, persistence.ErrNotFound):
			h.writeError(w, r, http.StatusNotFound, "opportunity_not_found",
				"No such opportunity")
		case errors.Is(err, application.ErrStoreUnavailable):
			h.writeError(w, r, http.StatusServiceUnavailable, "store_unavailable",
				"The opportunity store is temporarily unavailable")
		default:
			h.log.Error().Err(err).Str("opportunity", opportunityID).Msg("eligibility check failed")
			h.writeError(w, r, http.StatusInternalServerError, "internal_error",
				"Failed to evaluate eligibility")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, verdict)
}
