package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, ttl), mr
}

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t, time.Hour)

	rep := domain.Report{
		SessionID:      "sess-1",
		OverallSummary: "Solid structured answers.",
		WeightedScore:  71.25,
		Recommendation: domain.DecisionHire,
	}
	require.NoError(t, c.Set(context.Background(), rep))

	got, ok, err := c.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rep.SessionID, got.SessionID)
	assert.Equal(t, rep.Recommendation, got.Recommendation)
	assert.InDelta(t, rep.WeightedScore, got.WeightedScore, 0.001)
}

func TestCacheMiss(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t, time.Hour)

	_, ok, err := c.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()
	c, mr := newTestCache(t, time.Minute)

	require.NoError(t, c.Set(context.Background(), domain.Report{SessionID: "sess-1"}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheCorruptEntry(t *testing.T) {
	t.Parallel()
	c, mr := newTestCache(t, time.Hour)
	require.NoError(t, mr.Set("report:sess-1", "{not json"))

	_, _, err := c.Get(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=reportcache.get")
}
