package cache

import (
	"context"
	"os"
	"testing"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantrag/internal/model"
)

func TestHistoryKeyEscapesSessionKey(t *testing.T) {
	assert.Equal(t, "chat:history:alice%40example.com", historyKey("alice@example.com"))
	assert.Equal(t, "chat:history:a%3Ab", historyKey("a:b"))
}

func TestHistoryCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redisv9.NewClient(&redisv9.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	c := NewHistoryCache(client, time.Minute)
	key := "history-test@example.com"
	defer c.DeleteHistory(ctx, key)

	_, hit, err := c.GetHistory(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)

	msgs := []model.Message{
		{SessionKey: key, Role: model.RoleUser, Content: "q"},
		{SessionKey: key, Role: model.RoleAssistant, Content: "a"},
	}
	require.NoError(t, c.SetHistory(ctx, key, msgs))

	got, hit, err := c.GetHistory(ctx, key)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "a", got[1].Content)
}

func TestRequestClaimsFirstWins(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redisv9.NewClient(&redisv9.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	c := NewRequestClaims(client, time.Minute)
	id := "claim-test-request"
	defer client.Del(ctx, claimKey(id))

	first, err := c.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := c.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, second, "a claimed request cannot be taken twice")
}
