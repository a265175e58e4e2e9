package auth

import (
	"context"
	"time"

	"github.com/clearline-ai/warden/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// refreshTimeout bounds background cache refreshes.
const refreshTimeout = 5 * time.Second

// PostgresAuthenticator validates API keys against the tenants table,
// fronted by a stale-while-revalidate cache so the bcrypt compare and DB
// round trip stay off the hot path.
type PostgresAuthenticator struct {
	store  *store.Store
	cache  *tenantCache
	logger *zap.Logger
}

// NewPostgresAuthenticator creates an authenticator over the tenant store.
func NewPostgresAuthenticator(s *store.Store, cacheTTL time.Duration, logger *zap.Logger) *PostgresAuthenticator {
	return &PostgresAuthenticator{
		store:  s,
		cache:  newTenantCache(cacheTTL),
		logger: logger,
	}
}

func (a *PostgresAuthenticator) Authenticate(ctx context.Context, apiKey string) (*TenantContext, error) {
	if err := checkFormat(apiKey); err != nil {
		return nil, err
	}

	if tenant, refresh, ok := a.cache.Lookup(apiKey); ok {
		if refresh {
			go a.refresh(apiKey)
		}
		return tenant, nil
	}

	tenant, err := a.lookup(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	a.cache.Put(apiKey, tenant)
	return tenant, nil
}

func (a *PostgresAuthenticator) lookup(ctx context.Context, apiKey string) (*TenantContext, error) {
	t, err := a.store.LookupByPrefix(ctx, apiKey[:prefixLength])
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}
	return &TenantContext{TenantID: t.ID, Name: t.Name}, nil
}

func (a *PostgresAuthenticator) refresh(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	tenant, err := a.lookup(ctx, apiKey)
	if err != nil {
		a.logger.Warn("background auth refresh failed", zap.Error(err))
		a.cache.Drop(apiKey)
		return
	}
	a.cache.Put(apiKey, tenant)
}
