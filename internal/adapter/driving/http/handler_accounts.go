package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/evanrudell/relaypanel/internal/application"
	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// ContributeAccount links an external OAuth account to the authenticated
// identity and pushes the updated state to the gateway.
func (h *Handler) ContributeAccount(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req ContributeAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	contribution, err := h.contribSvc.ContributeOAuthAccount(
		r.Context(), identity.ID, model.OAuthProvider(req.Provider), req.AccountName, req.Email,
	)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrUnknownProvider):
			writeError(w, http.StatusBadRequest, "unknown oauth provider")
		case errors.Is(err, driven.ErrExternalAccountNotFound):
			writeError(w, http.StatusBadRequest, "account not found at provider")
		case errors.Is(err, driven.ErrDuplicateAccount):
			writeError(w, http.StatusConflict, "oauth account already linked")
		case errors.Is(err, application.ErrProviderUnavailable):
			writeError(w, http.StatusBadGateway, "oauth provider unavailable")
		default:
			h.logger.Error("failed to link oauth account", "identity_id", identity.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(contribution.Account, contribution.SyncWarning))
}

// RemoveAccount unlinks an OAuth account. Admins may remove any identity's
// record; other callers only their own.
func (h *Handler) RemoveAccount(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	provider := model.OAuthProvider(r.PathValue("provider"))
	accountName := r.PathValue("account")

	if !provider.Valid() {
		writeError(w, http.StatusBadRequest, "unknown oauth provider")
		return
	}

	removal, err := h.contribSvc.RemoveOAuthAccount(r.Context(), identity.ID, identity.IsAdmin, provider, accountName)
	if err != nil {
		switch {
		case errors.Is(err, driven.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "oauth account not found")
		case errors.Is(err, application.ErrAccessDenied):
			writeError(w, http.StatusForbidden, "access denied")
		default:
			h.logger.Error("failed to unlink oauth account", "account", accountName, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, RemovalResponse{Removed: true, SyncWarning: removal.SyncWarning})
}
