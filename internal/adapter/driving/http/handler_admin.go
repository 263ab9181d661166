package httphandler

import (
	"errors"
	"net/http"

	"github.com/evanrudell/relaypanel/internal/application"
)

// TriggerSync pushes the full local key set to the gateway. The response is
// the push result either way; a failed push maps to 502.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result := h.syncSvc.Push(r.Context())

	status := http.StatusOK
	if !result.Synced {
		status = http.StatusBadGateway
	}

	writeJSON(w, status, result)
}

// RunMigration performs the one-time import of pre-existing gateway
// credentials into local ownership records.
func (h *Handler) RunMigration(w http.ResponseWriter, r *http.Request) {
	result, err := h.migrationSvc.Run(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, application.ErrAlreadyMigrated):
			writeError(w, http.StatusConflict, "migration already run")
		case errors.Is(err, application.ErrNoEligibleIdentity):
			writeError(w, http.StatusBadRequest, "no eligible admin identity")
		case errors.Is(err, application.ErrGatewayNotConfigured):
			writeError(w, http.StatusInternalServerError, "management gateway not configured")
		case errors.Is(err, application.ErrGatewayUnavailable):
			writeError(w, http.StatusInternalServerError, "management gateway unavailable")
		default:
			h.logger.Error("migration run failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, MigrationResponse{
		Imported: result.Imported,
		Identity: result.Identity,
	})
}
