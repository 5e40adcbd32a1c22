package geobase

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the Metrics interface using Prometheus
type PrometheusMetrics struct {
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance.
// If registry is nil, a fresh registry is created.
func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

// registerDefaultMetrics registers all standard geobase metrics
func (p *PrometheusMetrics) registerDefaultMetrics() {
	factory := promauto.With(p.registry)

	for _, op := range []string{"create", "read", "update", "delete"} {
		p.counters["geobase."+op+".success"] = factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "geobase",
				Subsystem: op,
				Name:      "success_total",
				Help:      "Total number of successful " + op + " operations",
			},
			[]string{"collection"},
		)
		p.counters["geobase."+op+".error"] = factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "geobase",
				Subsystem: op,
				Name:      "errors_total",
				Help:      "Total number of failed " + op + " operations",
			},
			[]string{"collection"},
		)
		p.histograms["geobase."+op+".duration"] = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "geobase",
				Subsystem: op,
				Name:      "duration_seconds",
				Help:      op + " operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"collection"},
		)
	}

	p.histograms[MetricReadResults] = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geobase",
			Subsystem: "read",
			Name:      "results",
			Help:      "Number of documents returned by full-collection reads",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
		},
		[]string{"collection"},
	)

	p.counters[MetricConnectAttempts] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geobase",
			Subsystem: "connect",
			Name:      "attempts_total",
			Help:      "Total number of liveness probes issued while connecting",
		},
		[]string{"mode"},
	)

	p.counters[MetricConnectFailures] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geobase",
			Subsystem: "connect",
			Name:      "failures_total",
			Help:      "Total number of connects that exhausted their retries",
		},
		[]string{"mode"},
	)

	p.histograms[MetricConnectDuration] = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geobase",
			Subsystem: "connect",
			Name:      "duration_seconds",
			Help:      "Time spent establishing the store connection",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	p.counters[MetricCacheHits] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geobase",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of read cache hits",
		},
		[]string{"collection"},
	)

	p.counters[MetricCacheMisses] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geobase",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of read cache misses",
		},
		[]string{"collection"},
	)

	p.counters[MetricCacheClears] = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geobase",
			Subsystem: "cache",
			Name:      "clears_total",
			Help:      "Total number of explicit cache invalidations",
		},
		[]string{},
	)
}

// Increment increments a Prometheus counter
func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	p.mu.Lock()
	counter, ok := p.counters[name]
	if !ok {
		// Create dynamic counter if it doesn't exist
		counter = promauto.With(p.registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: metricName(name),
				Help: "Dynamic counter: " + name,
			},
			p.extractLabels(tags),
		)
		p.counters[name] = counter
	}
	p.mu.Unlock()

	counter.With(p.extractLabelValues(tags)).Inc()
}

// Gauge sets a Prometheus gauge value
func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	p.mu.Lock()
	gauge, ok := p.gauges[name]
	if !ok {
		gauge = promauto.With(p.registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricName(name),
				Help: "Dynamic gauge: " + name,
			},
			p.extractLabels(tags),
		)
		p.gauges[name] = gauge
	}
	p.mu.Unlock()

	gauge.With(p.extractLabelValues(tags)).Set(value)
}

// Histogram records a value in a Prometheus histogram
func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	p.mu.Lock()
	histogram, ok := p.histograms[name]
	if !ok {
		histogram = promauto.With(p.registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricName(name),
				Help:    "Dynamic histogram: " + name,
				Buckets: prometheus.DefBuckets,
			},
			p.extractLabels(tags),
		)
		p.histograms[name] = histogram
	}
	p.mu.Unlock()

	histogram.With(p.extractLabelValues(tags)).Observe(value)
}

// Timing records a duration in a Prometheus histogram
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// extractLabels extracts label names from tags (every even index)
func (p *PrometheusMetrics) extractLabels(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		labels = append(labels, tags[i])
	}
	return labels
}

// extractLabelValues creates a label map from tags (key-value pairs)
func (p *PrometheusMetrics) extractLabelValues(tags []string) prometheus.Labels {
	labels := make(prometheus.Labels)
	for i := 0; i+1 < len(tags); i += 2 {
		labels[tags[i]] = tags[i+1]
	}
	return labels
}

// Registry returns the underlying Prometheus registry
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// metricName turns "geobase.cache.hits" into a valid Prometheus name
func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
