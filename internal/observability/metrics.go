package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 全部指标注册在独立的 Registry 上；方法对 nil 接收者安全
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	recomputeRuns     *prometheus.CounterVec
	accountsScored    *prometheus.CounterVec
	accountDuration   *prometheus.HistogramVec
	sourceFallbacks   prometheus.Counter
	signalsTracked    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	cacheReloads      *prometheus.CounterVec
	malformedRules    *prometheus.GaugeVec
	classifications   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		recomputeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intent_recompute_runs_total",
			Help: "Recompute job invocations by mode and final state.",
		}, []string{"mode", "state"}),
		accountsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intent_accounts_scored_total",
			Help: "Accounts whose daily snapshot was written, by mode.",
		}, []string{"mode"}),
		accountDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intent_account_recompute_duration_seconds",
			Help:    "Per-account recompute duration.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"mode"}),
		sourceFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intent_event_source_fallbacks_total",
			Help: "Batch runs that fell back from the primary to the secondary event source.",
		}),
		signalsTracked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intent_signals_tracked_total",
			Help: "Real-time signals by outcome (stored, skipped, failed).",
		}, []string{"outcome"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_cache_hits_total",
			Help: "Config registry cache hits.",
		}, []string{"registry"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_cache_misses_total",
			Help: "Config registry cache misses.",
		}, []string{"registry"}),
		cacheReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_reloads_total",
			Help: "Config registry reloads by result.",
		}, []string{"registry", "result"}),
		malformedRules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "registry_malformed_rules",
			Help: "Rules that failed to compile in the last registry load.",
		}, []string{"registry"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "program_classifications_total",
			Help: "Opportunity classifications by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.recomputeRuns,
		m.accountsScored,
		m.accountDuration,
		m.sourceFallbacks,
		m.signalsTracked,
		m.cacheHits,
		m.cacheMisses,
		m.cacheReloads,
		m.malformedRules,
		m.classifications,
	)
	return m
}

// Registry 供测试读取
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware 按路由模板统计请求数与耗时
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RunFinished(mode, state string) {
	if m == nil {
		return
	}
	m.recomputeRuns.WithLabelValues(mode, state).Inc()
}

func (m *Metrics) AccountScored(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.accountsScored.WithLabelValues(mode).Inc()
	m.accountDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) SourceFallback() {
	if m == nil {
		return
	}
	m.sourceFallbacks.Inc()
}

func (m *Metrics) SignalTracked(outcome string) {
	if m == nil {
		return
	}
	m.signalsTracked.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Classified(outcome string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(outcome).Inc()
}

// 以下实现 registry.Observer

func (m *Metrics) CacheHit(registry string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(registry).Inc()
}

func (m *Metrics) CacheMiss(registry string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(registry).Inc()
}

func (m *Metrics) Reloaded(registry string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cacheReloads.WithLabelValues(registry, result).Inc()
}

func (m *Metrics) MalformedRules(registry string, n int) {
	if m == nil {
		return
	}
	m.malformedRules.WithLabelValues(registry).Set(float64(n))
}
