package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/calsync/internal/domain/model"
)

// Authentication errors. Implementations wrap these with detail, so callers
// match with errors.Is.
var (
	ErrConfigMissing       = errors.New("oauth client configuration missing")
	ErrAuthFailed          = errors.New("authorization failed")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrTokenRefreshFailed  = errors.New("token refresh failed")
)

// Authenticator owns the OAuth credential lifecycle.
type Authenticator interface {
	// SignIn runs the authorization-code flow with PKCE and returns a new
	// credential whose AccountID is the signed-in identity.
	SignIn(ctx context.Context) (model.Credential, error)

	// EnsureFresh returns cred unchanged while it is fresh. Otherwise it
	// exchanges the refresh token and returns the replacement credential.
	EnsureFresh(ctx context.Context, cred model.Credential) (model.Credential, error)
}

// AuthorizationPrompt presents the consent page at authURL and returns the
// authorization code delivered back with the matching state.
type AuthorizationPrompt interface {
	Authorize(ctx context.Context, authURL, state string) (string, error)
}

// URLOpener hands a URL to the operating system. It must not block on the
// opened application.
type URLOpener interface {
	Open(url string) error
}
