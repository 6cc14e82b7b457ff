package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/resilience"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	IDs   []int `json:"ids"`
	Total int   `json:"total"`
}

func newTestCache(t *testing.T) (*QueryCache[page], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr(), PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	breaker := resilience.NewCircuitBreaker("test-cache", resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	return New[page](client, time.Minute, pkgredis.IsNilError, breaker), mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key([]string{"cumin", "garlic"}, 10), Key([]string{"garlic", "cumin"}, 10))
	assert.NotEqual(t, Key([]string{"cumin"}, 10), Key([]string{"cumin"}, 20))
	assert.NotEqual(t, Key([]string{"cumin"}, 10), Key([]string{"cumin", "cumin"}, 10))
	assert.Contains(t, Key([]string{"cumin"}, 10), keyPrefix)
}

func TestGetOrComputeCachesValues(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := Key([]string{"cumin"}, 10)

	calls := 0
	compute := func() (page, error) {
		calls++
		return page{IDs: []int{2, 1}, Total: 2}, nil
	}

	v, hit, err := c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, page{IDs: []int{2, 1}, Total: 2}, v)

	v, hit, err = c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []int{2, 1}, v.IDs)
	assert.Equal(t, 1, calls)

	ttl := mr.TTL(key)
	assert.Equal(t, time.Minute, ttl)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
	assert.Equal(t, "closed", s.CircuitState)
}

func TestGetOrComputeNeverCachesErrors(t *testing.T) {
	c, mr := newTestCache(t)
	key := Key([]string{"saffron"}, 10)
	boom := errors.New("integrity")

	_, _, err := c.GetOrCompute(context.Background(), key, func() (page, error) { return page{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(key))
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c, _ := newTestCache(t)
	key := Key([]string{"onion"}, 5)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (page, error) {
		calls.Add(1)
		<-release
		return page{Total: 1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), key, compute)
			assert.NoError(t, err)
			assert.Equal(t, 1, v.Total)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	for _, tok := range []string{"a", "b", "c"} {
		c.Set(ctx, Key([]string{tok}, 1), page{Total: 1})
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	deleted, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.True(t, mr.Exists("unrelated"))

	_, ok := c.Get(ctx, Key([]string{"a"}, 1))
	assert.False(t, ok)
}

func TestBackendFailureOpensCircuitAndFallsThrough(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	calls := 0
	compute := func() (page, error) { calls++; return page{Total: 3}, nil }
	for i := 0; i < 3; i++ {
		v, hit, err := c.GetOrCompute(context.Background(), Key([]string{"x"}, 1), compute)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, 3, v.Total)
	}
	assert.Equal(t, 3, calls)
	s := c.Stats()
	assert.Equal(t, "open", s.CircuitState)
	assert.Positive(t, s.Errors)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	c, mr := newTestCache(t)
	key := Key([]string{"cumin"}, 1)
	require.NoError(t, mr.Set(key, "{not json"))

	_, ok := c.Get(context.Background(), key)
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Errors)
}
