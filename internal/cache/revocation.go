package cache

import (
	"context"
	"time"
)

const revokedPrefix = "revoked:"

// RevocationStore remembers revoked token ids until the token would have
// expired anyway.
type RevocationStore struct {
	cache   *RedisCache
	metrics *RevocationMetrics
}

func NewRevocationStore(c *RedisCache) *RevocationStore {
	return &RevocationStore{cache: c, metrics: NewRevocationMetrics()}
}

func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, revokedPrefix+tokenID, time.Now().Unix(), ttl); err != nil {
		s.metrics.recordError()
		return err
	}
	s.metrics.recordRevocation()
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := s.cache.Exists(ctx, revokedPrefix+tokenID)
	if err != nil {
		s.metrics.recordError()
		return false, err
	}
	s.metrics.recordLookup(revoked)
	return revoked, nil
}

func (s *RevocationStore) Metrics() RevocationMetrics {
	return s.metrics.Snapshot()
}
