// Package auth validates API keys for the HTTP surface. Keys are bearer
// tokens prefixed wsk_; the Postgres authenticator checks them against a
// bcrypt hash, the static authenticator only validates the format for
// database-less deployments.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// keyPrefix is the fixed prefix of every warden API key.
const keyPrefix = "wsk_"

// prefixLength is the number of leading key characters stored for lookups.
const prefixLength = 8

// TenantContext holds the authenticated tenant's identity.
type TenantContext struct {
	TenantID string
	Name     string
}

// Authenticator validates an API key and returns tenant context.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*TenantContext, error)
}

// checkFormat rejects keys that cannot possibly be valid before any lookup.
func checkFormat(apiKey string) error {
	if apiKey == "" {
		return ErrMissingAPIKey
	}
	if len(apiKey) < prefixLength || !strings.HasPrefix(apiKey, keyPrefix) {
		return ErrInvalidAPIKey
	}
	return nil
}

// StaticAuthenticator validates API key format only, with no database
// lookup. Used when no Postgres DSN is configured.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, apiKey string) (*TenantContext, error) {
	if err := checkFormat(apiKey); err != nil {
		return nil, err
	}
	return &TenantContext{TenantID: "static", Name: "static"}, nil
}
