// Package cache is the Redis-backed query cache in front of the ranker.
// Keys are derived from the normalized query tokens and the limit, so two
// requests that would rank identically share one entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "recipes:search:"

// Backend is the subset of pkg/redis.Client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Errors       int64   `json:"errors"`
	HitRate      float64 `json:"hit_rate"`
	CircuitState string  `json:"circuit_state"`
}

// QueryCache caches computed values of type T. Concurrent misses for the
// same key are collapsed into one computation, and Redis failures trip a
// circuit breaker so a sick cache degrades to direct computation.
type QueryCache[T any] struct {
	backend Backend
	ttl     time.Duration
	isMiss  func(error) bool
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// New builds a cache over backend. isMiss reports whether a Get error means
// "key absent" rather than a backend failure.
func New[T any](backend Backend, ttl time.Duration, isMiss func(error) bool, breaker *resilience.CircuitBreaker) *QueryCache[T] {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{})
	}
	return &QueryCache[T]{
		backend: backend,
		ttl:     ttl,
		isMiss:  isMiss,
		breaker: breaker,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key returns the cache key for tokens and limit. Token order does not
// matter but multiplicity does, since duplicated tokens score twice.
func Key(tokens []string, limit int) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	raw := fmt.Sprintf("%s|limit=%d", strings.Join(sorted, "\x1f"), limit)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}

// Get looks up a cached value. Any failure is reported as a miss.
func (c *QueryCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if err != nil && c.isMiss(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return zero, false
	}
	if data == nil {
		c.misses.Add(1)
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return zero, false
	}
	c.hits.Add(1)
	return v, true
}

// Set stores v under key; failures are logged, never returned.
func (c *QueryCache[T]) Set(ctx context.Context, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	}); err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value for key or computes, stores and
// returns it. Errors from compute are returned and never cached. The bool
// reports a cache hit.
func (c *QueryCache[T]) GetOrCompute(ctx context.Context, key string, compute func() (T, error)) (T, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		v, err := compute()
		if err != nil {
			return v, err
		}
		c.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate drops every cached search.
func (c *QueryCache[T]) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.DeleteByPrefix(ctx, keyPrefix)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache[T]) Stats() Stats {
	s := Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Errors:       c.errors.Load(),
		CircuitState: c.breaker.State().String(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
