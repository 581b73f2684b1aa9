// Package prom implements the observability hooks on Prometheus.
//
// A [Metrics] value satisfies every hook interface of the observability
// package. Register it once at startup and expose its registry:
//
//	reg := prometheus.NewRegistry()
//	m := prom.New(reg)
//	observability.SetPipelineHooks(m)
//	observability.SetRenderHooks(m)
//	observability.SetCacheHooks(m)
//	observability.SetServerHooks(m)
//	router.Handle("/metrics", m.Handler())
package prom

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/stripesankey/pkg/observability"
)

const namespace = "stripesankey"

// Metrics holds the Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	LoadsTotal      *prometheus.CounterVec
	LoadDuration    prometheus.Histogram
	DatasetNodes    prometheus.Gauge
	Crossings       prometheus.Gauge
	RendersTotal    *prometheus.CounterVec
	RenderDuration  *prometheus.HistogramVec
	WidgetPasses    prometheus.Counter
	WidgetDuration  prometheus.Histogram
	SelectionsTotal *prometheus.CounterVec
	CacheOpsTotal   *prometheus.CounterVec
	CacheBytes      prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.RenderHooks   = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.ServerHooks   = (*Metrics)(nil)
)

// New registers all collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		LoadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_loads_total",
			Help:      "Datasets loaded, by result",
		}, []string{"result"}),
		LoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Time to load and normalise a dataset",
			Buckets:   prometheus.DefBuckets,
		}),
		DatasetNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_nodes",
			Help:      "Nodes in the most recently loaded dataset",
		}),
		Crossings: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layout_crossings",
			Help:      "Weighted flow crossings of the most recent layout",
		}),
		RendersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Pipeline renders, by format and result",
		}, []string{"format", "result"}),
		RenderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Pipeline render latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"format"}),
		WidgetPasses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_render_passes_total",
			Help:      "Interactive render passes",
		}),
		WidgetDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "widget_render_pass_duration_seconds",
			Help:      "Interactive render pass latency",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		}),
		SelectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_commits_total",
			Help:      "Committed selections, by kind",
		}, []string{"kind"}),
		CacheOpsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Cache operations, by key type and outcome",
		}, []string{"key_type", "op"}),
		CacheBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_written_bytes_total",
			Help:      "Bytes written to the cache",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// =============================================================================
// Pipeline
// =============================================================================

func (m *Metrics) OnLoadStart(context.Context, string) {}

func (m *Metrics) OnLoadComplete(_ context.Context, _ string, nodes, _ int, d time.Duration, err error) {
	m.LoadsTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.LoadDuration.Observe(d.Seconds())
		m.DatasetNodes.Set(float64(nodes))
	}
}

func (m *Metrics) OnLayoutComplete(_ context.Context, _ int, crossings int, _ time.Duration) {
	m.Crossings.Set(float64(crossings))
}

func (m *Metrics) OnRenderStart(context.Context, []string) {}

func (m *Metrics) OnRenderComplete(_ context.Context, formats []string, d time.Duration, err error) {
	for _, f := range formats {
		m.RendersTotal.WithLabelValues(f, result(err)).Inc()
		m.RenderDuration.WithLabelValues(f).Observe(d.Seconds())
	}
}

// =============================================================================
// Widget
// =============================================================================

func (m *Metrics) OnRender(_, _ int, d time.Duration) {
	m.WidgetPasses.Inc()
	m.WidgetDuration.Observe(d.Seconds())
}

func (m *Metrics) OnSelection(flow string, changed bool) {
	kind := "select"
	switch {
	case !changed:
		kind = "noop"
	case flow == "":
		kind = "clear"
	}
	m.SelectionsTotal.WithLabelValues(kind).Inc()
}

// =============================================================================
// Cache
// =============================================================================

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.CacheOpsTotal.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.CacheOpsTotal.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.CacheOpsTotal.WithLabelValues(keyType, "set").Inc()
	m.CacheBytes.Add(float64(size))
}

// =============================================================================
// Server
// =============================================================================

func (m *Metrics) OnRequest(_ context.Context, method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
