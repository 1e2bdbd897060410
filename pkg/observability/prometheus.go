package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "depscout"

// PrometheusHooks records scan, cache and HTTP events as Prometheus metrics
// on its own registry.
type PrometheusHooks struct {
	registry *prometheus.Registry

	scansTotal    *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	scanComponent prometheus.Gauge
	scansActive   prometheus.Gauge
	unitsTotal    *prometheus.CounterVec
	unitDuration  *prometheus.HistogramVec
	cacheTotal    *prometheus.CounterVec
	cacheBytes    prometheus.Counter
	httpTotal     *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewPrometheusHooks registers the metrics on registry, or on a fresh
// registry carrying the Go and process collectors when registry is nil.
func NewPrometheusHooks(registry *prometheus.Registry) *PrometheusHooks {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	p := &PrometheusHooks{
		registry: registry,
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scans_total",
			Help: "Completed scans by outcome.",
		}, []string{"outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "scan_duration_seconds",
			Help:    "Wall time of complete scans.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		scanComponent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_scan_components",
			Help: "Components in the most recent scan result.",
		}),
		scansActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "scans_active",
			Help: "Scans currently running.",
		}),
		unitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "detector_units_total",
			Help: "Detector invocations by detector and status.",
		}, []string{"detector", "status"}),
		unitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "detector_unit_duration_seconds",
			Help:    "Time spent per detector invocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"detector"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_requests_total",
			Help: "Detector cache lookups by detector and result.",
		}, []string{"detector", "result"}),
		cacheBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_written_bytes_total",
			Help: "Bytes written to the detector cache.",
		}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	registry.MustRegister(
		p.scansTotal, p.scanDuration, p.scanComponent, p.scansActive,
		p.unitsTotal, p.unitDuration,
		p.cacheTotal, p.cacheBytes,
		p.httpTotal, p.httpDuration,
	)
	return p
}

// Hooks returns p as every hook set.
func (p *PrometheusHooks) Hooks() Hooks {
	return Hooks{Scan: p, Cache: p, HTTP: p}
}

// Registry returns the underlying registry.
func (p *PrometheusHooks) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusHooks) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *PrometheusHooks) OnScanStart(context.Context, string) { p.scansActive.Inc() }

func (p *PrometheusHooks) OnStateChange(context.Context, string) {}

func (p *PrometheusHooks) OnUnitComplete(_ context.Context, detectorID, status string, _ int, d time.Duration) {
	p.unitsTotal.WithLabelValues(detectorID, status).Inc()
	p.unitDuration.WithLabelValues(detectorID).Observe(d.Seconds())
}

func (p *PrometheusHooks) OnScanComplete(_ context.Context, _ string, components int, d time.Duration, err error) {
	p.scansActive.Dec()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.scansTotal.WithLabelValues(outcome).Inc()
	p.scanDuration.Observe(d.Seconds())
	if err == nil {
		p.scanComponent.Set(float64(components))
	}
}

func (p *PrometheusHooks) OnCacheHit(_ context.Context, detectorID string) {
	p.cacheTotal.WithLabelValues(detectorID, "hit").Inc()
}

func (p *PrometheusHooks) OnCacheMiss(_ context.Context, detectorID string) {
	p.cacheTotal.WithLabelValues(detectorID, "miss").Inc()
}

func (p *PrometheusHooks) OnCacheSet(_ context.Context, _ string, size int) {
	p.cacheBytes.Add(float64(size))
}

func (p *PrometheusHooks) OnRequest(_ context.Context, method, route string, status int, d time.Duration) {
	p.httpTotal.WithLabelValues(method, route, http.StatusText(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ ScanHooks  = (*PrometheusHooks)(nil)
	_ CacheHooks = (*PrometheusHooks)(nil)
	_ HTTPHooks  = (*PrometheusHooks)(nil)
)
