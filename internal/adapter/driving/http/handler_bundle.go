package httphandler

import (
	"errors"
	"net/http"

	"github.com/evanrudell/relaypanel/internal/application"
)

// validateSyncToken authenticates a bundle-pull request. Absent or unknown
// tokens and expired tokens both get a 401, with distinct messages so
// clients know whether to re-issue. Returns nil after writing the response
// when validation fails.
func (h *Handler) validateSyncToken(w http.ResponseWriter, r *http.Request) *application.ValidatedToken {
	bearer := bearerToken(r)
	if bearer == "" {
		writeError(w, http.StatusUnauthorized, "invalid sync token")
		return nil
	}

	validated, err := h.tokenSvc.Validate(r.Context(), bearer)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "sync token expired")
		case errors.Is(err, application.ErrTokenUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid sync token")
		default:
			h.logger.Error("sync token validation failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return nil
	}

	return validated
}

// BundleVersion returns only the version token for the caller's current
// configuration, for cheap change polling.
func (h *Handler) BundleVersion(w http.ResponseWriter, r *http.Request) {
	validated := h.validateSyncToken(w, r)
	if validated == nil {
		return
	}

	version, err := h.bundleSvc.Version(r.Context(), validated.IdentityID, validated.APIKeyID)
	if err != nil {
		h.logger.Error("bundle version failed", "identity_id", validated.IdentityID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, BundleVersionResponse{Version: version})
}

// Bundle returns the full configuration bundle and records the pull in the
// caller's subscription.
func (h *Handler) Bundle(w http.ResponseWriter, r *http.Request) {
	validated := h.validateSyncToken(w, r)
	if validated == nil {
		return
	}

	bundle, err := h.bundleSvc.Generate(r.Context(), validated.IdentityID, validated.APIKeyID)
	if err != nil {
		h.logger.Error("bundle generation failed", "identity_id", validated.IdentityID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toBundleResponse(bundle))
}
