// Package service is the query-facing API of the recommender. It validates
// and normalizes ingredient queries, applies result limits, consults the
// optional query cache and delegates scoring to the ranker.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/tracing"
)

// Store is the corpus as the service reads it.
type Store interface {
	ranker.RecipeLookup
	All() []corpus.Recipe
	Len() int
}

// Index is the inverted index as the service reads it.
type Index interface {
	ranker.TokenIndex
	Len() int
}

// Tracker receives one event per completed search.
type Tracker interface {
	Track(ev analytics.SearchEvent)
}

// Page is the cacheable part of a search.
type Page struct {
	Results      []ranker.Result `json:"results"`
	TotalMatches int             `json:"total_matches"`
}

// SearchResult is what Search returns. Query holds the normalized tokens in
// the order the caller sent them.
type SearchResult struct {
	Query        []string        `json:"query"`
	Results      []ranker.Result `json:"results"`
	TotalMatches int             `json:"total_matches"`
}

// MatchResult is a recipe annotated against a query.
type MatchResult struct {
	Recipe       corpus.Recipe
	Matched      []string
	MatchPercent int
}

type Service struct {
	store        Store
	index        Index
	cache        *cache.QueryCache[Page]
	tracker      Tracker
	metrics      *metrics.Metrics
	tracer       *tracing.Tracer
	defaultLimit int
	maxResults   int
	previewSize  int
	logger       *slog.Logger
}

type Option func(*Service)

// WithCache puts c in front of ranking. Failed searches are never cached.
func WithCache(c *cache.QueryCache[Page]) Option {
	return func(s *Service) { s.cache = c }
}

func WithTracker(t Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t *tracing.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithLimits overrides the default limit, the clamp and the preview size.
func WithLimits(cfg config.SearchConfig) Option {
	return func(s *Service) {
		if cfg.DefaultLimit > 0 {
			s.defaultLimit = cfg.DefaultLimit
		}
		if cfg.MaxResults > 0 {
			s.maxResults = cfg.MaxResults
		}
		if cfg.PreviewSize > 0 {
			s.previewSize = cfg.PreviewSize
		}
	}
}

func New(store Store, idx Index, opts ...Option) *Service {
	s := &Service{
		store:        store,
		index:        idx,
		defaultLimit: 100,
		maxResults:   500,
		previewSize:  ranker.DefaultPreviewSize,
		logger:       slog.Default().With("component", "query-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxResults < s.defaultLimit {
		s.maxResults = s.defaultLimit
	}
	return s
}

// Search ranks the corpus against rawTokens. A query with no usable tokens
// fails with errors.ErrInvalidQuery. limit <= 0 selects the default limit
// and larger limits are clamped to the configured maximum.
func (s *Service) Search(ctx context.Context, rawTokens []string, limit int) (*SearchResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "query-service")

	tokens := tokenizer.NormalizeAll(rawTokens)
	if len(tokens) == 0 {
		s.countOutcome("invalid")
		return nil, fmt.Errorf("%w: no ingredients after normalization", apperrors.ErrInvalidQuery)
	}
	limit = s.effectiveLimit(limit)

	ctx, span := s.tracer.Start(ctx, "recipe.search", logger.RequestID(ctx))
	defer span.End()
	span.SetAttr("tokens", len(tokens))
	span.SetAttr("limit", limit)

	compute := func() (Page, error) {
		_, rs := tracing.StartChild(ctx, "ranker.rank")
		defer rs.End()
		results, total, err := ranker.Rank(s.index, s.store, tokens, ranker.Options{Limit: limit, PreviewSize: s.previewSize})
		if err != nil {
			return Page{}, err
		}
		rs.SetAttr("total_matches", total)
		return Page{Results: results, TotalMatches: total}, nil
	}

	var (
		page     Page
		cacheHit bool
		err      error
	)
	if s.cache != nil {
		page, cacheHit, err = s.cache.GetOrCompute(ctx, cache.Key(tokens, limit), compute)
		s.countCache(cacheHit)
	} else {
		page, err = compute()
	}
	if err != nil {
		if apperrors.Is(err, apperrors.ErrDataIntegrity) {
			log.Error("index references recipe missing from corpus", "tokens", tokens, "error", err)
			if s.metrics != nil {
				s.metrics.IntegrityErrorsTotal.Inc()
			}
		}
		s.countOutcome("error")
		span.SetAttr("error", err.Error())
		return nil, fmt.Errorf("searching recipes: %w", err)
	}

	elapsed := time.Since(start)
	cacheStatus := "bypass"
	if s.cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	}
	span.SetAttr("cache", cacheStatus)
	if page.TotalMatches == 0 {
		s.countOutcome("zero_result")
	} else {
		s.countOutcome("ok")
	}
	if s.metrics != nil {
		s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		s.metrics.SearchResultsCount.Observe(float64(len(page.Results)))
		s.metrics.QueryTokensCount.Observe(float64(len(tokens)))
	}
	if s.tracker != nil {
		s.tracker.Track(analytics.SearchEvent{
			Tokens:       tokens,
			TotalMatches: page.TotalMatches,
			Returned:     len(page.Results),
			LatencyMs:    float64(elapsed.Microseconds()) / 1000,
			CacheHit:     cacheHit,
			RequestID:    logger.RequestID(ctx),
			Timestamp:    time.Now().UTC(),
		})
	}
	log.Debug("search completed",
		"tokens", tokens,
		"total_matches", page.TotalMatches,
		"returned", len(page.Results),
		"cache", cacheStatus,
		"latency", elapsed,
	)

	results := page.Results
	if results == nil {
		results = []ranker.Result{}
	}
	return &SearchResult{Query: tokens, Results: results, TotalMatches: page.TotalMatches}, nil
}

// GetByID returns the full recipe or an error wrapping ErrRecipeNotFound.
func (s *Service) GetByID(_ context.Context, id int) (corpus.Recipe, error) {
	return s.store.GetByID(id)
}

// ListAll returns every recipe in corpus order, unscored.
func (s *Service) ListAll(_ context.Context) []corpus.Recipe {
	return s.store.All()
}

// Match reports which distinct query tokens hit recipe id under the same
// prefix rule the ranker uses, and the share of query tokens that did.
// Matched is sorted. A query with no usable tokens yields an empty match.
func (s *Service) Match(ctx context.Context, id int, rawTokens []string) (MatchResult, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return MatchResult{}, err
	}
	uniq := distinct(tokenizer.NormalizeAll(rawTokens))
	matched := make([]string, 0, len(uniq))
	for _, t := range uniq {
		if s.tokenHits(t, id) {
			matched = append(matched, t)
		}
	}
	sort.Strings(matched)

	res := MatchResult{Recipe: r, Matched: matched}
	if len(uniq) > 0 {
		res.MatchPercent = int(math.Round(100 * float64(len(matched)) / float64(len(uniq))))
	}
	return res, nil
}

func (s *Service) tokenHits(t string, id int) bool {
	for _, k := range s.index.Tokens() {
		if !strings.HasPrefix(k, t) {
			continue
		}
		ids := s.index.IDsForToken(k)
		if i := sort.SearchInts(ids, id); i < len(ids) && ids[i] == id {
			return true
		}
	}
	return false
}

// CorpusStats sizes the loaded data, for readiness checks and metrics.
type CorpusStats struct {
	Recipes int `json:"recipes"`
	Tokens  int `json:"tokens"`
}

func (s *Service) CorpusStats() CorpusStats {
	return CorpusStats{Recipes: s.store.Len(), Tokens: s.index.Len()}
}

// Ready fails when nothing was loaded.
func (s *Service) Ready(context.Context) error {
	if s.store.Len() == 0 || s.index.Len() == 0 {
		return fmt.Errorf("corpus not loaded: %d recipes, %d tokens", s.store.Len(), s.index.Len())
	}
	return nil
}

func (s *Service) effectiveLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxResults {
		return s.maxResults
	}
	return limit
}

func (s *Service) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.Inc()
	} else {
		s.metrics.CacheMissesTotal.Inc()
	}
}

func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
