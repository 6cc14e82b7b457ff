// Package metrics defines the Prometheus collectors for the recipe service
// and the handler that exposes them for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service records into.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	QueryTokensCount     prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IntegrityErrorsTotal prometheus.Counter
	CorpusRecipes        prometheus.Gauge
	IndexTokens          prometheus.Gauge
	AnalyticsDropped     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry, which keeps tests independent of each other.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_search_queries_total",
				Help: "Recipe searches by outcome (ok, zero_result, invalid, error).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recipe_search_latency_seconds",
				Help:    "Recipe search latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recipe_search_results_count",
			Help:    "Number of recipes returned per search.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		QueryTokensCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recipe_search_query_tokens",
			Help:    "Number of normalized ingredient tokens per search.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipe_cache_hits_total",
			Help: "Total number of query cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipe_cache_misses_total",
			Help: "Total number of query cache misses.",
		}),
		IntegrityErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipe_index_integrity_errors_total",
			Help: "Searches that hit an index id missing from the corpus.",
		}),
		CorpusRecipes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recipe_corpus_size",
			Help: "Number of recipes loaded into the corpus store.",
		}),
		IndexTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recipe_index_tokens",
			Help: "Number of distinct tokens in the inverted index.",
		}),
		AnalyticsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipe_analytics_events_dropped_total",
			Help: "Search events dropped because the analytics buffer was full.",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.QueryTokensCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IntegrityErrorsTotal,
		m.CorpusRecipes,
		m.IndexTokens,
		m.AnalyticsDropped,
		m.CircuitBreakerState,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// Handler returns the scrape handler for the registry m was registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
