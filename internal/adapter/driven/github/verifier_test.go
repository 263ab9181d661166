package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

func newTestVerifier(t *testing.T, handler http.Handler) *Verifier {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	// go-github requires a trailing slash on BaseURL.
	verifier, err := NewVerifierWithHTTPClient(srv.Client(), srv.URL+"/")
	require.NoError(t, err)

	return verifier
}

func TestVerifier_Supports(t *testing.T) {
	verifier := NewVerifier("token")

	assert.True(t, verifier.Supports(model.ProviderGitHub))
	assert.False(t, verifier.Supports(model.ProviderGoogle))
}

func TestVerifier_Lookup(t *testing.T) {
	verifier := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/OctoCat", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"login":"octocat","email":"octo@example.com"}`)
	}))

	account, err := verifier.Lookup(context.Background(), "OctoCat")
	require.NoError(t, err)
	require.NotNil(t, account)
	// The provider's canonical login wins over the submitted casing.
	assert.Equal(t, "octocat", account.Login)
	assert.Equal(t, "octo@example.com", account.Email)
}

func TestVerifier_Lookup_NotFound(t *testing.T) {
	verifier := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}))

	_, err := verifier.Lookup(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrExternalAccountNotFound)
}

func TestVerifier_Lookup_ServerError(t *testing.T) {
	verifier := newTestVerifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := verifier.Lookup(context.Background(), "octocat")
	require.Error(t, err)
	assert.NotErrorIs(t, err, driven.ErrExternalAccountNotFound)
}
