package httphandler

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/evanrudell/relaypanel/internal/domain/model"
)

// apiKeySecretPattern mirrors the model's key secret shape for request
// validation messages.
var apiKeySecretPattern = regexp.MustCompile(`^sk-[0-9a-f]{48}$`)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeValidationError writes a 400 response enumerating every violated
// field in one pass.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	fields := map[string]string{}
	if ok := asValidationErrors(err, &verrs); ok {
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
	}

	writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		Error:  "validation failed",
		Fields: fields,
	})
}

func asValidationErrors(err error, target *validation.Errors) bool {
	verrs, ok := err.(validation.Errors)
	if ok {
		*target = verrs
	}
	return ok
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// validationErrorResponse carries per-field validation messages.
type validationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// ContributeKeyRequest is the JSON body for the contribute key endpoint.
// An empty secret asks the server to generate one.
type ContributeKeyRequest struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// Validate checks the request shape and reports every violation at once.
func (r ContributeKeyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Secret,
			validation.Match(apiKeySecretPattern).Error("must be sk- followed by 48 hex characters")),
	)
}

// IssueSyncTokenRequest is the JSON body for the issue sync token endpoint.
type IssueSyncTokenRequest struct {
	APIKeyID *int64 `json:"api_key_id"`
}

// Validate checks the request shape.
func (r IssueSyncTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.APIKeyID, validation.Min(int64(1))),
	)
}

// ContributeAccountRequest is the JSON body for the link account endpoint.
type ContributeAccountRequest struct {
	Provider    string `json:"provider"`
	AccountName string `json:"account_name"`
	Email       string `json:"email"`
}

// Validate checks the request shape and reports every violation at once.
func (r ContributeAccountRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Provider, validation.Required,
			validation.In(string(model.ProviderGitHub), string(model.ProviderGoogle))),
		validation.Field(&r.AccountName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, is.EmailFormat),
	)
}

// KeyContributionResponse is the JSON representation of a contributed key.
// Key carries the plaintext secret only when the server generated it.
type KeyContributionResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Key         string `json:"key,omitempty"`
	KeyHash     string `json:"key_hash"`
	KeyMask     string `json:"key_mask"`
	SyncWarning string `json:"sync_warning,omitempty"`
}

// RemovalResponse is the JSON representation of a key or account removal.
type RemovalResponse struct {
	Removed     bool   `json:"removed"`
	SyncWarning string `json:"sync_warning,omitempty"`
}

// SyncTokenResponse is the JSON representation of a freshly issued sync
// token. Token is the plaintext secret, shown exactly once.
type SyncTokenResponse struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	CreatedAt string `json:"created_at"`
}

// AccountResponse is the JSON representation of a linked OAuth account.
type AccountResponse struct {
	ID          int64  `json:"id"`
	Provider    string `json:"provider"`
	AccountName string `json:"account_name"`
	Email       string `json:"email,omitempty"`
	CreatedAt   string `json:"created_at"`
	SyncWarning string `json:"sync_warning,omitempty"`
}

// MigrationResponse is the JSON representation of a completed migration run.
type MigrationResponse struct {
	Imported int    `json:"imported"`
	Identity string `json:"identity"`
}

// BundleVersionResponse is the lightweight version-only check body.
type BundleVersionResponse struct {
	Version string `json:"version"`
}

// BundleKeyResponse is one credential entry in a bundle response.
type BundleKeyResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// BundleAccountResponse is one OAuth ownership entry in a bundle response.
type BundleAccountResponse struct {
	Provider    string `json:"provider"`
	AccountName string `json:"account_name"`
	Email       string `json:"email,omitempty"`
}

// BundleResponse is the full configuration bundle body.
type BundleResponse struct {
	Version     string                  `json:"version"`
	GatewayURL  string                  `json:"gateway_url"`
	Keys        []BundleKeyResponse     `json:"keys"`
	Accounts    []BundleAccountResponse `json:"accounts"`
	GeneratedAt string                  `json:"generated_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status            string `json:"status"`
	Time              string `json:"time"`
	GatewayConfigured bool   `json:"gateway_configured"`
}

// toAccountResponse converts a contribution outcome to its JSON representation.
func toAccountResponse(account model.OAuthAccount, syncWarning string) AccountResponse {
	return AccountResponse{
		ID:          account.ID,
		Provider:    string(account.Provider),
		AccountName: account.AccountName,
		Email:       account.Email,
		CreatedAt:   account.CreatedAt.UTC().Format(time.RFC3339),
		SyncWarning: syncWarning,
	}
}

// toBundleResponse converts a domain ConfigBundle to its JSON representation.
func toBundleResponse(bundle *model.ConfigBundle) BundleResponse {
	keys := make([]BundleKeyResponse, 0, len(bundle.Keys))
	for _, key := range bundle.Keys {
		keys = append(keys, BundleKeyResponse{ID: key.ID, Name: key.Name, Secret: key.Secret})
	}

	accounts := make([]BundleAccountResponse, 0, len(bundle.Accounts))
	for _, account := range bundle.Accounts {
		accounts = append(accounts, BundleAccountResponse{
			Provider:    string(account.Provider),
			AccountName: account.AccountName,
			Email:       account.Email,
		})
	}

	return BundleResponse{
		Version:     bundle.Version,
		GatewayURL:  bundle.GatewayURL,
		Keys:        keys,
		Accounts:    accounts,
		GeneratedAt: bundle.GeneratedAt.UTC().Format(time.RFC3339),
	}
}
