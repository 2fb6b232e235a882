package cache

import (
	"context"
	"fmt"
	"net/url"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

const defaultClaimTTL = 10 * time.Minute

// RequestClaims records which chat requests an agent has taken. Every agent
// subscribed to the inbox pattern receives every request; only the first
// Claim of a request id succeeds.
type RequestClaims struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewRequestClaims(client *redisv9.Client, ttl time.Duration) *RequestClaims {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &RequestClaims{client: client, ttl: ttl}
}

func (c *RequestClaims) Claim(ctx context.Context, requestID string) (bool, error) {
	ok, err := c.client.SetNX(ctx, claimKey(requestID), time.Now().UTC().Format(time.RFC3339Nano), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim request failed: %w", err)
	}
	return ok, nil
}

func claimKey(requestID string) string {
	return "chat:request:" + url.QueryEscape(requestID)
}
