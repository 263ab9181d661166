package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/evanrudell/relaypanel/internal/application"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// ContributeKey registers an API key for the authenticated identity and
// pushes the updated set to the gateway.
func (h *Handler) ContributeKey(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req ContributeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	contribution, err := h.contribSvc.ContributeKey(r.Context(), identity.ID, req.Secret, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidKeySecret):
			writeError(w, http.StatusBadRequest, "invalid api key secret format")
		case errors.Is(err, application.ErrKeyAlreadyContributed):
			writeError(w, http.StatusConflict, "api key already contributed")
		case errors.Is(err, application.ErrKeyLimitReached):
			writeError(w, http.StatusUnprocessableEntity, "api key limit reached")
		case errors.Is(err, application.ErrGatewayUnavailable):
			writeError(w, http.StatusBadGateway, "management gateway unavailable")
		default:
			h.logger.Error("failed to contribute key", "identity_id", identity.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, KeyContributionResponse{
		ID:          contribution.KeyID,
		Name:        contribution.Name,
		Key:         contribution.Secret,
		KeyHash:     contribution.KeyHash,
		KeyMask:     contribution.KeyMask,
		SyncWarning: contribution.SyncWarning,
	})
}

// RemoveKey deletes an API key. Admins may remove any identity's key.
func (h *Handler) RemoveKey(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	keyID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	removal, err := h.contribSvc.RemoveKey(r.Context(), identity.ID, identity.IsAdmin, keyID)
	if err != nil {
		switch {
		case errors.Is(err, driven.ErrKeyNotFound):
			writeError(w, http.StatusNotFound, "api key not found")
		case errors.Is(err, application.ErrAccessDenied):
			writeError(w, http.StatusForbidden, "access denied")
		default:
			h.logger.Error("failed to remove key", "key_id", keyID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, RemovalResponse{Removed: true, SyncWarning: removal.SyncWarning})
}

// CheckKeys runs a read-only reconciliation between the identity's local
// key set and the gateway's set.
func (h *Handler) CheckKeys(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := h.reconcileSvc.Check(r.Context(), identity.ID)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrGatewayNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "management gateway not configured")
		case errors.Is(err, application.ErrGatewayUnavailable):
			writeError(w, http.StatusBadGateway, "management gateway unavailable")
		default:
			h.logger.Error("reconciliation check failed", "identity_id", identity.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// IssueSyncToken creates a bundle-pull token for the authenticated identity.
// The plaintext is returned once and never again.
func (h *Handler) IssueSyncToken(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req IssueSyncTokenRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	plaintext, token, err := h.tokenSvc.Issue(r.Context(), identity.ID, req.APIKeyID)
	if err != nil {
		h.logger.Error("failed to issue sync token", "identity_id", identity.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, SyncTokenResponse{
		ID:        token.ID,
		Token:     plaintext,
		CreatedAt: token.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// RevokeSyncToken irreversibly revokes one of the identity's tokens.
func (h *Handler) RevokeSyncToken(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	tokenID := r.PathValue("id")

	if err := h.tokenSvc.Revoke(r.Context(), identity.ID, tokenID); err != nil {
		switch {
		case errors.Is(err, driven.ErrTokenNotFound):
			writeError(w, http.StatusNotFound, "sync token not found")
		case errors.Is(err, application.ErrNotTokenOwner):
			writeError(w, http.StatusForbidden, "not the token owner")
		default:
			h.logger.Error("failed to revoke sync token", "token_id", tokenID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
