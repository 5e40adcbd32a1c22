package geobase

import (
	"sync"
	"time"
)

// Metrics provides observability for geobase operations
type Metrics interface {
	// Increment increases a counter by 1
	Increment(name string, tags ...string)

	// Gauge sets an absolute value
	Gauge(name string, value float64, tags ...string)

	// Histogram records a value distribution (latency, size, etc)
	Histogram(name string, value float64, tags ...string)

	// Timing records a duration
	Timing(name string, duration time.Duration, tags ...string)
}

// NoOpMetrics is a metrics collector that does nothing
type NoOpMetrics struct{}

func (m *NoOpMetrics) Increment(name string, tags ...string)                      {}
func (m *NoOpMetrics) Gauge(name string, value float64, tags ...string)           {}
func (m *NoOpMetrics) Histogram(name string, value float64, tags ...string)       {}
func (m *NoOpMetrics) Timing(name string, duration time.Duration, tags ...string) {}

// InMemoryMetrics stores metrics in memory for testing.
// Tags are ignored; values are aggregated by metric name.
type InMemoryMetrics struct {
	mu         sync.Mutex
	Counters   map[string]int
	Gauges     map[string]float64
	Histograms map[string][]float64
	Timings    map[string][]time.Duration
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		Counters:   make(map[string]int),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string][]float64),
		Timings:    make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Increment(name string, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name]++
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges[name] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Histograms[name] = append(m.Histograms[name], value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timings[name] = append(m.Timings[name], duration)
}

// Count returns the current value of a counter
func (m *InMemoryMetrics) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[name]
}

// Common metric names
const (
	MetricCreateSuccess  = "geobase.create.success"
	MetricCreateError    = "geobase.create.error"
	MetricCreateDuration = "geobase.create.duration"
	MetricReadSuccess    = "geobase.read.success"
	MetricReadError      = "geobase.read.error"
	MetricReadDuration   = "geobase.read.duration"
	MetricReadResults    = "geobase.read.results"
	MetricUpdateSuccess  = "geobase.update.success"
	MetricUpdateError    = "geobase.update.error"
	MetricUpdateDuration = "geobase.update.duration"
	MetricDeleteSuccess  = "geobase.delete.success"
	MetricDeleteError    = "geobase.delete.error"
	MetricDeleteDuration = "geobase.delete.duration"

	MetricConnectAttempts = "geobase.connect.attempts"
	MetricConnectFailures = "geobase.connect.failures"
	MetricConnectDuration = "geobase.connect.duration"

	MetricCacheHits   = "geobase.cache.hits"
	MetricCacheMisses = "geobase.cache.misses"
	MetricCacheClears = "geobase.cache.clears"
)

// metricsOrNoOp keeps nil collectors out of the hot path
func metricsOrNoOp(m Metrics) Metrics {
	if m == nil {
		return &NoOpMetrics{}
	}
	return m
}
