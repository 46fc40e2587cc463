package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuthorizationPrompt = (*LoopbackPrompt)(nil)

// DefaultConsentTimeout bounds how long Authorize waits for the redirect.
const DefaultConsentTimeout = 5 * time.Minute

const successPage = `<!doctype html>
<html>
  <head><title>Signed in</title></head>
  <body>
    <h1>Signed in</h1>
    <p>You can close this window and return to calsync.</p>
  </body>
</html>
`

type callbackResult struct {
	code string
	err  error
}

// LoopbackPrompt opens the consent page in the browser and listens on the
// redirect URL for the provider's callback.
type LoopbackPrompt struct {
	redirect *url.URL
	opener   driven.URLOpener
	timeout  time.Duration
}

// NewLoopbackPrompt validates redirectURL, which must be an http URL with an
// explicit host and port.
func NewLoopbackPrompt(redirectURL string, opener driven.URLOpener) (*LoopbackPrompt, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URL: %w", err)
	}
	if u.Scheme != "http" || u.Port() == "" {
		return nil, fmt.Errorf("redirect URL %q must be http with an explicit port", redirectURL)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return &LoopbackPrompt{redirect: u, opener: opener, timeout: DefaultConsentTimeout}, nil
}

// WithTimeout returns a copy of p that waits at most d for the callback.
func (p *LoopbackPrompt) WithTimeout(d time.Duration) *LoopbackPrompt {
	cp := *p
	cp.timeout = d
	return &cp
}

// Authorize serves the redirect path, opens authURL, and waits for a
// callback carrying the expected state. Callbacks with a different state are
// rejected and the wait continues.
func (p *LoopbackPrompt) Authorize(ctx context.Context, authURL, state string) (string, error) {
	ln, err := net.Listen("tcp", p.redirect.Host)
	if err != nil {
		return "", fmt.Errorf("listening on %s: %w", p.redirect.Host, err)
	}

	results := make(chan callbackResult, 1)
	deliver := func(r callbackResult) {
		select {
		case results <- r:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(p.redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if reason := q.Get("error"); reason != "" {
			http.Error(w, "authorization denied: "+reason, http.StatusForbidden)
			deliver(callbackResult{err: fmt.Errorf("provider returned %s", reason)})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(callbackResult{err: errors.New("callback carried no code")})
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(successPage))
		deliver(callbackResult{code: code})
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("oauth callback server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("waiting for sign-in in the browser", "url", authURL)
	if err := p.opener.Open(authURL); err != nil {
		slog.Warn("could not open browser, visit the URL manually", "error", err)
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case r := <-results:
		return r.code, r.err
	case <-timer.C:
		return "", fmt.Errorf("no callback within %s", p.timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
