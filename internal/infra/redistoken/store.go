// Package redistoken implements the token-store port on Redis, sharing
// bank tokens between horizontally scaled instances so each credential
// is granted once per expiry window across the whole deployment.
package redistoken

import (
	"context"
	"encoding/json"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "banktoken:"

// Store keeps bank tokens in Redis. Implements port.TokenStore.
type Store struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// ConnectionInfo configures the Redis connection.
type ConnectionInfo struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// New connects to Redis and verifies the connection with a ping.
func New(info ConnectionInfo, logger *zap.Logger) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         info.Addr,
		Password:     info.Password,
		DB:           info.DB,
		DialTimeout:  info.Timeout,
		ReadTimeout:  info.Timeout,
		WriteTimeout: info.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), info.Timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &Store{rdb: rdb, logger: logger}, nil
}

// Get fetches a cached token. A Redis failure is reported as a miss so
// the caller falls through to a fresh grant.
func (s *Store) Get(ctx context.Context, key string) (domain.Token, bool) {
	raw, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			s.logger.Warn("redis token get failed", zap.String("key", key), zap.Error(err))
		}
		return domain.Token{}, false
	}

	var tok domain.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		s.logger.Warn("redis token decode failed", zap.String("key", key), zap.Error(err))
		return domain.Token{}, false
	}
	if !tok.Valid(time.Now()) {
		return domain.Token{}, false
	}
	return tok, true
}

// Set stores a token with the given TTL, overwriting any prior entry.
func (s *Store) Set(ctx context.Context, key string, tok domain.Token, ttl time.Duration) {
	raw, err := json.Marshal(tok)
	if err != nil {
		s.logger.Warn("redis token encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.rdb.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		s.logger.Warn("redis token set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete evicts one credential's token.
func (s *Store) Delete(ctx context.Context, key string) {
	if err := s.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		s.logger.Warn("redis token delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear evicts every cached token (credential rotation).
func (s *Store) Clear(ctx context.Context) {
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("redis token clear failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("redis token scan failed", zap.Error(err))
	}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}
