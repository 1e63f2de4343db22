package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked_jti:"

// TokenBlacklist keeps revoked access-token ids in redis until the token's
// natural expiry, so sign-out takes effect before the access TTL runs out.
type TokenBlacklist struct {
	client *redis.Client
}

func NewTokenBlacklist(client *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{client: client}
}

func (s *TokenBlacklist) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already expired; nothing to revoke.
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+jti, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *TokenBlacklist) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := s.client.Get(ctx, revokedKeyPrefix+jti).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return true, nil
}
