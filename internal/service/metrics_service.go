package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/perf-review-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
	cycleRuns       *prometheus.CounterVec
	reviewsCreated  *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	tokenChecks     *prometheus.CounterVec
	nineBoxBuilds   *prometheus.CounterVec
	nineBoxDuration prometheus.Observer

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	cycleRunCount        uint64
	reviewsCreatedCount  uint64
	submissionCount      uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	}, []string{"namespace"})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by namespace and result",
	}, []string{"namespace", "result"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	cycleRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_cycle_runs_total",
		Help: "Review cycle runs by outcome",
	}, []string{"outcome"})

	reviewsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_logs_created_total",
		Help: "Review logs created by the cycle, by review type",
	}, []string{"review_type"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_submissions_total",
		Help: "Review submissions by save mode",
	}, []string{"save_mode"})

	tokenChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_token_checks_total",
		Help: "Token validations by result",
	}, []string{"result"})

	nineBoxBuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nine_box_snapshots_total",
		Help: "Nine-box matrix requests by source",
	}, []string{"source"})

	nineBoxDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nine_box_compute_seconds",
		Help:    "Duration of nine-box matrix computation",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheLookups, dbQueryDuration,
		cycleRuns, reviewsCreated, submissions, tokenChecks, nineBoxBuilds, nineBoxDuration, goroutines,
	)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheLookups:    cacheLookups,
		dbQueryDuration: dbQueryDuration,
		cycleRuns:       cycleRuns,
		reviewsCreated:  reviewsCreated,
		submissions:     submissions,
		tokenChecks:     tokenChecks,
		nineBoxBuilds:   nineBoxBuilds,
		nineBoxDuration: nineBoxDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(namespace string, hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues(namespace).Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	m.cacheLookups.WithLabelValues(namespace, result).Inc()
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCycleRun counts a scheduler run and the reviews it created.
func (m *MetricsService) RecordCycleRun(summary *models.CycleSummary, err error) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cycleRunCount, 1)
	if err != nil || summary == nil {
		m.cycleRuns.WithLabelValues("error").Inc()
		return
	}
	m.cycleRuns.WithLabelValues("ok").Inc()
	m.reviewsCreated.WithLabelValues(string(models.ReviewTypeSelf)).Add(float64(summary.SelfReviewsCreated))
	m.reviewsCreated.WithLabelValues(string(models.ReviewTypePeer)).Add(float64(summary.PeerReviewsCreated))
	atomic.AddUint64(&m.reviewsCreatedCount, uint64(summary.SelfReviewsCreated+summary.PeerReviewsCreated))
}

// RecordTaskReviews counts task review logs opened by a trigger.
func (m *MetricsService) RecordTaskReviews(created int) {
	if m == nil || created <= 0 {
		return
	}
	m.reviewsCreated.WithLabelValues(string(models.ReviewContextTask)).Add(float64(created))
	atomic.AddUint64(&m.reviewsCreatedCount, uint64(created))
}

// RecordSubmission counts an accepted review submission.
func (m *MetricsService) RecordSubmission(saveMode string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(saveMode).Inc()
	atomic.AddUint64(&m.submissionCount, 1)
}

// RecordTokenCheck counts a token validation outcome.
func (m *MetricsService) RecordTokenCheck(result string) {
	if m == nil {
		return
	}
	m.tokenChecks.WithLabelValues(result).Inc()
}

// RecordNineBox counts a nine-box request and, when computed, its duration.
func (m *MetricsService) RecordNineBox(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.nineBoxBuilds.WithLabelValues(source).Inc()
	if duration > 0 {
		m.nineBoxDuration.Observe(duration.Seconds())
	}
}

// Snapshot returns aggregated metrics suitable for API consumption.
func (m *MetricsService) Snapshot(now time.Time) models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{GeneratedAt: now.UTC()}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	var cacheRatio float64
	if lookups := hits + misses; lookups > 0 {
		cacheRatio = float64(hits) / float64(lookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: avgDBMs,
		CycleRuns:                atomic.LoadUint64(&m.cycleRunCount),
		ReviewsCreated:           atomic.LoadUint64(&m.reviewsCreatedCount),
		Submissions:              atomic.LoadUint64(&m.submissionCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              now.UTC(),
	}
}
