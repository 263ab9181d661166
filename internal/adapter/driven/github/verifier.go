// Package github implements the AccountVerifier port using the go-github library.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountVerifier = (*Verifier)(nil)

// Verifier resolves GitHub account names against the GitHub API before an
// ownership record is linked. Transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
type Verifier struct {
	gh *gh.Client
}

// NewVerifier creates a Verifier authenticated with the given personal
// access token.
func NewVerifier(token string) *Verifier {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Verifier{gh: client}
}

// NewVerifierWithHTTPClient creates a Verifier with a custom http.Client and
// base URL. This constructor is intended for testing, allowing injection of
// an httptest server.
func NewVerifierWithHTTPClient(httpClient *http.Client, baseURL string) (*Verifier, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Verifier{gh: client}, nil
}

// Supports reports whether this verifier can resolve accounts for provider.
func (v *Verifier) Supports(provider model.OAuthProvider) bool {
	return provider == model.ProviderGitHub
}

// Lookup resolves an account name to its canonical GitHub login and public
// email. Unknown accounts map to ErrExternalAccountNotFound; any other
// failure means GitHub could not be consulted.
func (v *Verifier) Lookup(ctx context.Context, accountName string) (*driven.VerifiedAccount, error) {
	user, resp, err := v.gh.Users.Get(ctx, accountName)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("lookup github user %s: %w", accountName, driven.ErrExternalAccountNotFound)
		}
		return nil, fmt.Errorf("lookup github user %s: %w", accountName, err)
	}

	return &driven.VerifiedAccount{
		Login: user.GetLogin(),
		Email: user.GetEmail(),
	}, nil
}
