package client

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Authorizer supplies the bearer token for an outbound request. It returns ""
// when there is no session and an error when the session had to be ended.
type Authorizer interface {
	Authorize(ctx context.Context) (string, error)
}

// newHTTPClient creates an HTTP client tuned for short API calls.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// authTransport runs before every outbound request. An expired session is
// ended and the request goes out without credentials; a live session is
// attached as a bearer token.
type authTransport struct {
	base http.RoundTripper
	auth Authorizer
}

// NewAuthTransport wraps base with the session interceptor.
func NewAuthTransport(base http.RoundTripper, auth Authorizer) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{base: base, auth: auth}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.New().String())
	}

	if t.auth != nil {
		token, err := t.auth.Authorize(req.Context())
		switch {
		case err != nil:
			slog.Warn("session ended before request",
				"method", req.Method,
				"path", req.URL.Path,
				"error", err,
			)
			req.Header.Del("Authorization")
		case token != "":
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return t.base.RoundTrip(req)
}
