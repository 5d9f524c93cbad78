// Package auth attaches LeafLink application-key credentials to outgoing
// requests.
package auth

import (
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
)

// Scheme is the Authorization scheme LeafLink expects for application keys.
const Scheme = "App"

// HeaderName is the header carrying the credential.
const HeaderName = "Authorization"

// AppKey is a static LeafLink application key. It never expires and is
// never refreshed; a rejected key surfaces as an authentication error on
// the first request.
type AppKey struct {
	key string
}

// NewAppKey validates key and returns the credential.
func NewAppKey(key string) (*AppKey, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "api_key is required")
	}
	return &AppKey{key: key}, nil
}

// Header returns the header name and value: Authorization, "App <key>".
func (a *AppKey) Header() (string, string) {
	return HeaderName, Scheme + " " + a.key
}

// Token exposes the key as an oauth2 token so the standard
// oauth2.Transport can attach it. TokenType is kept verbatim.
func (a *AppKey) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: a.key, TokenType: Scheme}, nil
}

// TokenSource returns a reusable token source over the key.
func (a *AppKey) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: a.key, TokenType: Scheme})
}

// Transport wraps base so every request carries the App credential.
// A nil base uses http.DefaultTransport.
func (a *AppKey) Transport(base http.RoundTripper) http.RoundTripper {
	return &oauth2.Transport{Source: a.TokenSource(), Base: base}
}

// String redacts the key.
func (a *AppKey) String() string {
	return Scheme + " [redacted]"
}
