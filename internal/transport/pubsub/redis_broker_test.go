package pubsub

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantrag/internal/pkg/logger"
)

func TestRedisBroker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewRedisBroker(logger.Nop(), rdb)

	sub, err := b.PSubscribe(ctx, InboxPattern)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, Inbox("carol@example.com"), ChatRequest{TenantID: "acme", Message: "ping"}))

	msg := receive(t, sub)
	key, ok := msg.Channel.SessionKey()
	require.True(t, ok)
	assert.Equal(t, "carol@example.com", key)

	var req ChatRequest
	require.NoError(t, msg.Decode(&req))
	assert.Equal(t, "acme", req.TenantID)
}
