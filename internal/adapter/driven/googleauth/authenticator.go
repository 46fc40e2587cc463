// Package googleauth implements the Authenticator port against Google's
// OAuth 2.0 endpoints using golang.org/x/oauth2.
package googleauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/ericfisherdev/calsync/internal/domain/model"
	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Authenticator = (*Authenticator)(nil)

const (
	// ExpiryMargin is subtracted from the provider's token lifetime so a
	// credential is refreshed before the provider starts rejecting it.
	ExpiryMargin = 60 * time.Second

	// UnknownAccount is the identity used when the id_token carries no email.
	UnknownAccount = "unknown@google"

	// defaultLifetime applies when the token response has no expires_in.
	defaultLifetime = time.Hour
)

// Scopes requested at sign-in.
var Scopes = []string{"openid", "email", calendar.CalendarReadonlyScope}

// Config configures an Authenticator. Endpoint and HTTPClient are optional
// and default to Google's endpoints and http.DefaultClient.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	HTTPClient   *http.Client
	Now          func() time.Time
}

// Authenticator runs the PKCE sign-in flow and keeps credentials fresh.
type Authenticator struct {
	oauth      *oauth2.Config // nil when no client id is configured
	prompt     driven.AuthorizationPrompt
	httpClient *http.Client
	now        func() time.Time
}

// New creates an Authenticator. The prompt presents the consent page and
// returns the authorization code.
func New(cfg Config, prompt driven.AuthorizationPrompt) *Authenticator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	a := &Authenticator{
		prompt:     prompt,
		httpClient: cfg.HTTPClient,
		now:        cfg.Now,
	}

	if cfg.ClientID == "" {
		return a
	}

	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}

	a.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       Scopes,
	}
	return a
}

// SignIn sends the user through the consent page and exchanges the returned
// code for tokens. The account id of the result is the email claim of the
// id_token.
func (a *Authenticator) SignIn(ctx context.Context) (model.Credential, error) {
	if a.oauth == nil {
		return model.Credential{}, fmt.Errorf("%w: no client id configured", driven.ErrConfigMissing)
	}

	verifier := oauth2.GenerateVerifier()
	state, err := randomState()
	if err != nil {
		return model.Credential{}, fmt.Errorf("%w: generating state: %w", driven.ErrAuthFailed, err)
	}

	authURL := a.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)

	code, err := a.prompt.Authorize(ctx, authURL, state)
	if err != nil {
		return model.Credential{}, fmt.Errorf("%w: %w", driven.ErrAuthFailed, err)
	}
	if code == "" {
		return model.Credential{}, fmt.Errorf("%w: no authorization code returned", driven.ErrAuthFailed)
	}

	token, err := a.oauth.Exchange(a.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return model.Credential{}, fmt.Errorf("%w: %w", driven.ErrTokenExchangeFailed, err)
	}

	cred := a.credentialFromToken(token)
	cred.AccountID = emailFromIDToken(cred.IDToken)

	slog.Info("signed in", "account", cred.AccountID, "expiry", cred.Expiry)
	return cred, nil
}

// EnsureFresh returns cred unchanged while it is fresh. Otherwise it redeems
// the refresh token. A response without a new refresh token keeps the old one.
func (a *Authenticator) EnsureFresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if cred.IsFresh(a.now()) {
		return cred, nil
	}
	if a.oauth == nil {
		return model.Credential{}, fmt.Errorf("%w: no client id configured", driven.ErrConfigMissing)
	}
	if cred.RefreshToken == "" {
		return model.Credential{}, fmt.Errorf("%w: no refresh token available", driven.ErrTokenRefreshFailed)
	}

	// An empty access token forces the token source to refresh.
	source := a.oauth.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return model.Credential{}, fmt.Errorf("%w: %w", driven.ErrTokenRefreshFailed, err)
	}

	fresh := a.credentialFromToken(token)
	fresh.AccountID = cred.AccountID
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}
	if fresh.IDToken == "" {
		fresh.IDToken = cred.IDToken
	}

	slog.Debug("token refreshed", "account", cred.AccountID, "expiry", fresh.Expiry)
	return fresh, nil
}

func (a *Authenticator) clientContext(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// credentialFromToken rebases the token lifetime onto the injected clock and
// applies ExpiryMargin. The lifetime comes from expires_in when the endpoint
// sent it; otherwise from token.Expiry, which oauth2 stamps on the wall clock.
// Short lifetimes shrink the margin to half the lifetime so a fresh
// credential never starts out expired.
func (a *Authenticator) credentialFromToken(token *oauth2.Token) model.Credential {
	lifetime := defaultLifetime
	switch {
	case token.ExpiresIn > 0:
		lifetime = time.Duration(token.ExpiresIn) * time.Second
	case !token.Expiry.IsZero():
		lifetime = time.Until(token.Expiry)
	}

	margin := min(ExpiryMargin, lifetime/2)

	idToken, _ := token.Extra("id_token").(string)

	return model.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      idToken,
		Expiry:       a.now().Add(lifetime - margin),
	}
}

// emailFromIDToken reads the email claim without verifying the signature.
// The token came straight from the token endpoint over TLS.
func emailFromIDToken(idToken string) string {
	if idToken == "" {
		return UnknownAccount
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		slog.Warn("could not parse id_token", "error", err)
		return UnknownAccount
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return UnknownAccount
	}
	return email
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
