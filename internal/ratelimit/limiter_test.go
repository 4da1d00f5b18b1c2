package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/ramonsarchive/ascend/internal/config"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "rl:invite.create:42", Key("invite.create", "42"))
	assert.Equal(t, "rl:invite.page:anonymous", Key("invite.page", " "))
}

func TestNoopAllows(t *testing.T) {
	ok, err := NewNoop().Allow(context.Background(), "invite.accept", "1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewLimiterFallsBackToNoop(t *testing.T) {
	log := zaptest.NewLogger(t)
	rules := config.NewStaticMembershipConfigHolder(config.DefaultMembershipConfig())

	l := NewLimiter(Params{Cfg: config.Config{}, Rules: rules, Log: log})
	assert.IsType(t, noopLimiter{}, l)

	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}
	l = NewLimiter(Params{Cfg: cfg, Rules: rules, Log: log})
	assert.IsType(t, noopLimiter{}, l)
}

func TestBucketLimiterSurfacesRedisErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	rules := config.NewStaticMembershipConfigHolder(config.DefaultMembershipConfig())
	l := NewBucketLimiter(NewTokenBucket(client), rules, zaptest.NewLogger(t))

	ok, err := l.Allow(context.Background(), "link.accept", "7")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestTokenBucketValidatesInput(t *testing.T) {
	var nilBucket *TokenBucket
	_, err := nilBucket.Take(context.Background(), "k", 1, 1)
	assert.Error(t, err)

	bucket := NewTokenBucket(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	_, err = bucket.Take(context.Background(), "", 1, 1)
	assert.Error(t, err)
	_, err = bucket.Take(context.Background(), "k", 0, 1)
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 40*time.Second, bucketTTL(0.5, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}
