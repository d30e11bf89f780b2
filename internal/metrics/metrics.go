// Package metrics provides Prometheus instrumentation and a JSON stats
// endpoint for the lookup service.
package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxTopEntries = 100

// Query result labels.
const (
	ResultMatch       = "match"
	ResultNoMatches   = "no_matches"
	ResultEmptyQuery  = "empty_query"
	ResultRateLimited = "rate_limited"
)

// Metrics collects Prometheus counters and histograms for the service.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal    *prometheus.CounterVec
	queryLatency    prometheus.Histogram
	rateLimited     prometheus.Counter
	techniques      prometheus.Gauge
	countermeasures prometheus.Gauge

	mu            sync.Mutex
	startTime     time.Time
	topTechniques map[string]int64
	matchCount    int64
	noMatchCount  int64
	emptyCount    int64
}

// New creates a Metrics instance with its own Prometheus registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	queriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "d3tect",
		Name:      "queries_total",
		Help:      "Total number of lookup queries by result.",
	}, []string{"result"})

	queryLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "d3tect",
		Name:      "query_duration_seconds",
		Help:      "Query resolution latency in seconds.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "d3tect",
		Name:      "ratelimited_total",
		Help:      "Total requests rejected by the per-client rate limiter.",
	})

	techniques := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "d3tect",
		Name:      "dataset_techniques",
		Help:      "Number of ATT&CK techniques in the loaded dataset.",
	})

	countermeasures := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "d3tect",
		Name:      "dataset_countermeasures",
		Help:      "Number of D3FEND countermeasures in the loaded dataset.",
	})

	reg.MustRegister(queriesTotal, queryLatency, rateLimited, techniques, countermeasures)

	return &Metrics{
		registry:        reg,
		queriesTotal:    queriesTotal,
		queryLatency:    queryLatency,
		rateLimited:     rateLimited,
		techniques:      techniques,
		countermeasures: countermeasures,
		startTime:       time.Now(),
		topTechniques:   make(map[string]int64),
	}
}

// RecordMatch records a query that resolved to one or more techniques.
// matchedIDs feeds the capped top-techniques table on /stats.
func (m *Metrics) RecordMatch(duration time.Duration, matchedIDs []string) {
	m.queriesTotal.WithLabelValues(ResultMatch).Inc()
	m.queryLatency.Observe(duration.Seconds())

	m.mu.Lock()
	m.matchCount++
	for _, id := range matchedIDs {
		if len(m.topTechniques) < maxTopEntries {
			m.topTechniques[id]++
		} else if _, exists := m.topTechniques[id]; exists {
			m.topTechniques[id]++
		}
	}
	m.mu.Unlock()
}

// RecordNoMatches records a query that exhausted all strategies with zero
// results.
func (m *Metrics) RecordNoMatches(duration time.Duration) {
	m.queriesTotal.WithLabelValues(ResultNoMatches).Inc()
	m.queryLatency.Observe(duration.Seconds())

	m.mu.Lock()
	m.noMatchCount++
	m.mu.Unlock()
}

// RecordEmptyQuery records a blank query rejection.
func (m *Metrics) RecordEmptyQuery() {
	m.queriesTotal.WithLabelValues(ResultEmptyQuery).Inc()

	m.mu.Lock()
	m.emptyCount++
	m.mu.Unlock()
}

// RecordRateLimited records a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Inc()
	m.queriesTotal.WithLabelValues(ResultRateLimited).Inc()
}

// SetDatasetSize publishes the loaded dataset dimensions.
func (m *Metrics) SetDatasetSize(techniques, countermeasures int) {
	m.techniques.Set(float64(techniques))
	m.countermeasures.Set(float64(countermeasures))
}

// PrometheusHandler returns an HTTP handler that serves /metrics in
// Prometheus text format.
func (m *Metrics) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StatsHandler returns an HTTP handler that serves a JSON stats summary.
func (m *Metrics) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		m.mu.Lock()
		total := m.matchCount + m.noMatchCount + m.emptyCount
		stats := statsResponse{
			UptimeSeconds: time.Since(m.startTime).Seconds(),
			Queries: queryStats{
				Total:      total,
				Matched:    m.matchCount,
				NoMatches:  m.noMatchCount,
				EmptyQuery: m.emptyCount,
			},
			TopTechniques: topN(m.topTechniques),
		}
		if total > 0 {
			stats.Queries.MatchRate = float64(m.matchCount) / float64(total)
		}
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	}
}

type statsResponse struct {
	UptimeSeconds float64       `json:"uptime_seconds"`
	Queries       queryStats    `json:"queries"`
	TopTechniques []rankedEntry `json:"top_techniques"`
}

type queryStats struct {
	Total      int64   `json:"total"`
	Matched    int64   `json:"matched"`
	NoMatches  int64   `json:"no_matches"`
	EmptyQuery int64   `json:"empty_query"`
	MatchRate  float64 `json:"match_rate"`
}

type rankedEntry struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

func topN(m map[string]int64) []rankedEntry {
	entries := make([]rankedEntry, 0, len(m))
	for name, count := range m {
		entries = append(entries, rankedEntry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	return entries
}
