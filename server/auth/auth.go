// Package auth decides whether a caller may invoke an A2A method.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDenied is returned when credentials are missing or wrong.
var ErrDenied = errors.New("access denied")

// Credentials are what a transport extracted from the request.
type Credentials struct {
	Scheme string // "bearer", "header" or "oauth2"; empty when nothing was presented
	Token  string
	Header string // header name for the "header" scheme
}

// Empty reports whether no credential was presented.
func (c Credentials) Empty() bool { return c.Token == "" }

type credentialsKey struct{}

// WithCredentials returns a context carrying creds.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// FromContext returns the credentials stored by WithCredentials.
func FromContext(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(Credentials)
	return creds, ok
}

// Authenticator allows or denies a caller. A nil error allows.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, creds Credentials) error

func (f AuthenticatorFunc) Authenticate(ctx context.Context, creds Credentials) error {
	return f(ctx, creds)
}

// NoAuth allows every caller.
type NoAuth struct{}

func (NoAuth) Authenticate(context.Context, Credentials) error { return nil }

// StaticToken allows callers presenting a single shared token.
type StaticToken struct {
	Token string
}

func (s StaticToken) Authenticate(_ context.Context, creds Credentials) error {
	if creds.Empty() || s.Token == "" {
		return ErrDenied
	}
	if subtle.ConstantTimeCompare([]byte(creds.Token), []byte(s.Token)) != 1 {
		return ErrDenied
	}
	return nil
}

// JWT allows callers presenting an HMAC-signed bearer token. When Issuer is
// set the token's iss claim must match it.
type JWT struct {
	Secret []byte
	Issuer string
}

func (j JWT) Authenticate(_ context.Context, creds Credentials) error {
	if creds.Empty() {
		return ErrDenied
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}

	token, err := jwt.Parse(creds.Token, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDenied, err)
	}
	if !token.Valid {
		return ErrDenied
	}
	return nil
}
