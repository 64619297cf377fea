package blacklist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist invalidates access tokens ahead of their natural expiry.
// Sessions handle refresh tokens; this covers the short-lived access tokens
// a logout or a full lockout leaves in the wild. Entries live in Redis with
// a TTL no longer than the token's remaining lifetime.
type TokenBlacklist struct {
	redis *redis.Client
}

func New(redisClient *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{redis: redisClient}
}

// AddAccessToken blacklists a single access token until it would have
// expired anyway. Tokens already past expiry are ignored.
func (b *TokenBlacklist) AddAccessToken(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	key := fmt.Sprintf("blacklist:token:%s", token)
	if err := b.redis.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	return nil
}

// IsBlacklisted checks whether a specific access token has been revoked.
func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	key := fmt.Sprintf("blacklist:token:%s", token)

	exists, err := b.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}

	return exists > 0, nil
}

// BlacklistUser marks every access token issued to the user before now as
// invalid. Used by sign-out-everywhere and the reuse cascade; the marker
// only needs to outlive the longest access-token lifetime.
func (b *TokenBlacklist) BlacklistUser(ctx context.Context, userID int64, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	key := fmt.Sprintf("blacklist:user:%d", userID)
	return b.redis.Set(ctx, key, time.Now().Unix(), ttl).Err()
}

// IsUserBlacklisted reports whether a token issued at tokenIssuedAt predates
// the user's invalidation marker.
func (b *TokenBlacklist) IsUserBlacklisted(ctx context.Context, userID int64, tokenIssuedAt time.Time) (bool, error) {
	key := fmt.Sprintf("blacklist:user:%d", userID)

	timestamp, err := b.redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return tokenIssuedAt.Before(time.Unix(timestamp, 0)), nil
}
