// Package middleware holds HTTP middleware shared by the A2A transports.
package middleware

import (
	"net/http"
	"strings"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/server/auth"
)

// DefaultAPIKeyHeader is the header read for the "apiKey" scheme.
const DefaultAPIKeyHeader = "X-API-Key"

type options struct {
	apiKeyHeader string
}

// Option configures the credentials middleware.
type Option func(*options)

// WithAPIKeyHeader sets the header read for the "apiKey" scheme.
func WithAPIKeyHeader(name string) Option {
	return func(o *options) {
		if name != "" {
			o.apiKeyHeader = name
		}
	}
}

// Credentials extracts the caller's credentials according to the schemes the
// agent card advertises and stores them on the request context. It never
// rejects a request; the dispatcher decides.
func Credentials(card *a2a.AgentCard, opts ...Option) func(http.Handler) http.Handler {
	o := options{apiKeyHeader: DefaultAPIKeyHeader}
	for _, opt := range opts {
		opt(&o)
	}

	schemes := []string{"bearer"}
	if card != nil && card.Authentication != nil && len(card.Authentication.Schemes) > 0 {
		schemes = card.Authentication.Schemes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if creds, ok := extract(r, schemes, o.apiKeyHeader); ok {
				r = r.WithContext(auth.WithCredentials(r.Context(), creds))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extract tries each scheme in order and returns the first credential found.
func extract(r *http.Request, schemes []string, apiKeyHeader string) (auth.Credentials, bool) {
	for _, scheme := range schemes {
		switch strings.ToLower(scheme) {
		case "bearer", "oauth2", "jwt":
			token, ok := bearerToken(r)
			if !ok {
				continue
			}
			kind := "bearer"
			if strings.EqualFold(scheme, "oauth2") {
				kind = "oauth2"
			}
			return auth.Credentials{Scheme: kind, Token: token}, true
		case "apikey", "header":
			value := r.Header.Get(apiKeyHeader)
			if value == "" {
				continue
			}
			return auth.Credentials{Scheme: "header", Header: apiKeyHeader, Token: value}, true
		}
	}
	return auth.Credentials{}, false
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
