// Package service provides the business logic layer: token caching,
// slip lifecycle, statement ingestion, reconciliation matching and
// payment settlement.
package service

import (
	"context"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/observability"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tokenTracer = otel.Tracer("service/token")

// TokenService hands out bank access tokens, caching them until expiry.
// Concurrent misses for the same credential are collapsed into a single
// grant. It implements port.TokenProvider.
type TokenService struct {
	creds   port.CredentialStore
	granter port.TokenGranter
	store   port.TokenStore
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTokenService creates the token cache.
func NewTokenService(creds port.CredentialStore, granter port.TokenGranter, store port.TokenStore, metrics *observability.Metrics, logger *zap.Logger) *TokenService {
	return &TokenService{
		creds:   creds,
		granter: granter,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// GetToken returns a valid token for the credential, granting a fresh
// one only on a cache miss.
func (s *TokenService) GetToken(ctx context.Context, credentialID string) (domain.Token, error) {
	ctx, span := tokenTracer.Start(ctx, "TokenService.GetToken")
	defer span.End()
	span.SetAttributes(attribute.String("credential.id", credentialID))

	if tok, ok := s.store.Get(ctx, credentialID); ok && tok.Valid(time.Now()) {
		s.metrics.IncrCacheHit("token")
		return tok, nil
	}
	s.metrics.IncrCacheMiss("token")

	return s.grant(ctx, credentialID)
}

// ForceRefresh discards any cached token and grants a new one. Callers
// use it after the bank answers 401 with a token that looked valid.
func (s *TokenService) ForceRefresh(ctx context.Context, credentialID string) (domain.Token, error) {
	ctx, span := tokenTracer.Start(ctx, "TokenService.ForceRefresh")
	defer span.End()
	span.SetAttributes(attribute.String("credential.id", credentialID))

	s.store.Delete(ctx, credentialID)
	return s.grant(ctx, credentialID)
}

// Clear drops every cached token, across all credentials.
func (s *TokenService) Clear(ctx context.Context) {
	s.store.Clear(ctx)
	s.logger.Info("token cache cleared")
}

// grant performs the actual OAuth2 exchange, deduplicated per credential
// so a burst of concurrent misses costs one call to the bank.
func (s *TokenService) grant(ctx context.Context, credentialID string) (domain.Token, error) {
	v, err, _ := s.group.Do(credentialID, func() (any, error) {
		// A waiter that lost the race may find the winner's token here.
		if tok, ok := s.store.Get(ctx, credentialID); ok && tok.Valid(time.Now()) {
			return tok, nil
		}

		cred, err := s.creds.GetCredential(ctx, credentialID)
		if err != nil {
			return domain.Token{}, err
		}
		if !cred.Complete() {
			return domain.Token{}, &domain.ErrNotFound{Resource: "credential", ID: credentialID}
		}

		tok, err := s.granter.Grant(ctx, cred)
		if err != nil {
			s.metrics.IncrTokenGrant("failed")
			s.logger.Error("token grant failed",
				zap.String("credential_id", credentialID),
				zap.Error(err),
			)
			return domain.Token{}, err
		}
		s.metrics.IncrTokenGrant("ok")

		ttl := time.Until(tok.ExpiresAt)
		if ttl > 0 {
			s.store.Set(ctx, credentialID, tok, ttl)
		}
		s.logger.Debug("token granted",
			zap.String("credential_id", credentialID),
			zap.Time("expires_at", tok.ExpiresAt),
		)
		return tok, nil
	})
	if err != nil {
		return domain.Token{}, err
	}
	return v.(domain.Token), nil
}

// MemoryTokenStore adapts the in-process TTL cache to port.TokenStore.
// It is the default backend when no Redis address is configured.
type MemoryTokenStore struct {
	cache interface {
		Get(key string) (domain.Token, bool)
		Set(key string, value domain.Token, ttl time.Duration)
		Delete(key string)
		Clear()
	}
}

// NewMemoryTokenStore wraps an in-process token cache.
func NewMemoryTokenStore(cache interface {
	Get(key string) (domain.Token, bool)
	Set(key string, value domain.Token, ttl time.Duration)
	Delete(key string)
	Clear()
}) *MemoryTokenStore {
	return &MemoryTokenStore{cache: cache}
}

func (m *MemoryTokenStore) Get(_ context.Context, key string) (domain.Token, bool) {
	return m.cache.Get(key)
}

func (m *MemoryTokenStore) Set(_ context.Context, key string, tok domain.Token, ttl time.Duration) {
	m.cache.Set(key, tok, ttl)
}

func (m *MemoryTokenStore) Delete(_ context.Context, key string) {
	m.cache.Delete(key)
}

func (m *MemoryTokenStore) Clear(_ context.Context) {
	m.cache.Clear()
}
