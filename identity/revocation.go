package identity

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "revoked:"

// RedisRevoker remembers revoked token ids until the tokens would expire anyway.
type RedisRevoker struct {
	rc *redis.Client
}

// NewRedisRevoker creates a RedisRevoker backed by rc.
func NewRedisRevoker(rc *redis.Client) *RedisRevoker {
	return &RedisRevoker{rc: rc}
}

// Revoke marks tokenID revoked for ttl. Tokens that already expired are ignored.
func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return r.rc.Set(ctx, revokedPrefix+tokenID, "1", ttl).Err()
}

// Revoked reports whether tokenID was revoked.
func (r *RedisRevoker) Revoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rc.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
