package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestQueryKey(t *testing.T) {
	assert.Equal(t, "cumin,garlic", QueryKey([]string{"garlic", "cumin", "garlic"}))
	assert.Equal(t, "", QueryKey(nil))
}

func TestAggregatorStats(t *testing.T) {
	a := NewAggregator()
	a.Record(SearchEvent{Tokens: []string{"cumin", "garlic"}, TotalMatches: 3, LatencyMs: 1})
	a.Record(SearchEvent{Tokens: []string{"garlic", "cumin"}, TotalMatches: 3, LatencyMs: 3, CacheHit: true})
	a.Record(SearchEvent{Tokens: []string{"saffron"}, TotalMatches: 0, LatencyMs: 2})

	s := a.Stats()
	assert.Equal(t, int64(3), s.TotalSearches)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(2), s.CacheMisses)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.InDelta(t, 2.0, s.AvgLatencyMs, 1e-9)
	assert.Equal(t, 2.0, s.P50LatencyMs)
	assert.Equal(t, 3.0, s.P99LatencyMs)
	assert.Equal(t, []TermCount{{"cumin", 2}, {"garlic", 2}, {"saffron", 1}}, s.TopIngredients)
	assert.Equal(t, []TermCount{{"cumin,garlic", 2}, {"saffron", 1}}, s.TopQueries)
	assert.Equal(t, []TermCount{{"saffron", 1}}, s.ZeroResultQueries)
}

func TestAggregatorLatencyWindowIsBounded(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < latencyWindow+50; i++ {
		a.Record(SearchEvent{Tokens: []string{"salt"}, TotalMatches: 1, LatencyMs: 1})
	}
	assert.Len(t, a.latencies, latencyWindow)
	assert.Equal(t, int64(latencyWindow+50), a.Stats().TotalSearches)
}

func TestHandleEventSkipsGarbage(t *testing.T) {
	a := NewAggregator()
	handle := HandleEvent(a)

	value, err := json.Marshal(SearchEvent{Tokens: []string{"cumin"}, TotalMatches: 1})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), nil, value))
	require.NoError(t, handle(context.Background(), nil, []byte("not json")))

	assert.Equal(t, int64(1), a.Stats().TotalSearches)
}

func TestCollectorFlushesOnBatchSize(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BufferSize: 10, BatchSize: 2, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())

	c.Track(SearchEvent{Tokens: []string{"b", "a"}})
	c.Track(SearchEvent{Tokens: []string{"c"}})
	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)

	c.Track(SearchEvent{Tokens: []string{"d"}})
	c.Close()
	assert.Equal(t, 3, pub.count())
	assert.Equal(t, "a,b", pub.batches[0][0].Key)
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, nil)
	c.Start(context.Background())
	defer c.Close()

	c.Track(SearchEvent{Tokens: []string{"cumin"}})
	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	drops := 0
	c := NewCollector(&recordingPublisher{}, CollectorConfig{BufferSize: 1, BatchSize: 10, FlushInterval: time.Hour}, func() { drops++ })

	// Not started, so nothing drains the buffer.
	c.Track(SearchEvent{})
	c.Track(SearchEvent{})
	c.Track(SearchEvent{})
	assert.Equal(t, int64(2), c.Dropped())
	assert.Equal(t, 2, drops)
}

func TestCollectorSurvivesPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, CollectorConfig{BatchSize: 1, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())
	c.Track(SearchEvent{})
	c.Track(SearchEvent{})
	c.Close()
	assert.Equal(t, 2, pub.count())
}

func TestLocalPublisherFeedsAggregator(t *testing.T) {
	a := NewAggregator()
	c := NewCollector(&LocalPublisher{Aggregator: a}, CollectorConfig{BatchSize: 1}, nil)
	c.Start(context.Background())
	c.Track(SearchEvent{Tokens: []string{"cumin"}, TotalMatches: 2})
	c.Close()
	assert.Equal(t, int64(1), a.Stats().TotalSearches)

	err := (&LocalPublisher{Aggregator: a}).PublishBatch(context.Background(), []kafka.Event{{Value: "x"}})
	assert.Error(t, err)
}

type fakeLister struct {
	snaps []Stats
	err   error
}

func (f fakeLister) ListSnapshots(context.Context, int) ([]Stats, error) { return f.snaps, f.err }

func TestHandler(t *testing.T) {
	a := NewAggregator()
	a.Record(SearchEvent{Tokens: []string{"cumin"}, TotalMatches: 1})

	mux := http.NewServeMux()
	NewHandler(a, fakeLister{snaps: []Stats{{TotalSearches: 7}}}).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var s Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&s))
	assert.Equal(t, int64(1), s.TotalSearches)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_searches":7`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerWithoutSnapshots(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(NewAggregator(), nil).RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
