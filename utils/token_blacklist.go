package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist remembers revoked session tokens until they would have expired anyway.
// Redis is preferred; a nil client switches to process memory.
type TokenBlacklist struct {
	rc *redis.Client

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewTokenBlacklist(rc *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rc: rc, revoked: map[string]time.Time{}}
}

// Revoke stores a token until expiresAt to support logout semantics.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := b.rc.Set(ctx, "jwt:blacklist:"+token, "1", ttl).Err(); err != nil {
			Sugar.Warnf("token blacklist set failed: %v", err)
		}
		return
	}
	b.mu.Lock()
	b.revoked[token] = expiresAt
	b.mu.Unlock()
}

// IsRevoked checks if a token was revoked before natural expiration.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) bool {
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := b.rc.Exists(ctx, "jwt:blacklist:"+token).Result()
		if err != nil {
			// fail open so a Redis outage does not log everyone out
			return false
		}
		return n > 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.revoked[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(b.revoked, token)
		return false
	}
	return true
}
