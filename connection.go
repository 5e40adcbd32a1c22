package geobase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ConnState is the lifecycle state of a Connector's handle
type ConnState int32

const (
	StateUnconnected ConnState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// BackendFactory builds (but does not probe) the backend described by cfg
type BackendFactory func(ctx context.Context, cfg Config) (Backend, error)

// Connector owns the single shared backend handle for a process.
// The handle is built on first demand and shared by every caller; it is
// safe for concurrent use. Build one at the service root and pass it down.
type Connector struct {
	cfg     Config
	factory BackendFactory
	logger  Logger
	metrics Metrics

	mu      sync.Mutex // serializes connect attempts
	backend Backend
	state   atomic.Int32
}

// ConnectorOption configures a Connector
type ConnectorOption func(*Connector)

// WithLogger sets the logger used for connection events
func WithLogger(logger Logger) ConnectorOption {
	return func(c *Connector) {
		c.logger = loggerOrNoOp(logger)
	}
}

// WithMetrics sets the metrics collector used for connection events
func WithMetrics(metrics Metrics) ConnectorOption {
	return func(c *Connector) {
		c.metrics = metricsOrNoOp(metrics)
	}
}

// WithBackendFactory replaces OpenBackend, e.g. to inject a prebuilt backend
func WithBackendFactory(factory BackendFactory) ConnectorOption {
	return func(c *Connector) {
		c.factory = factory
	}
}

// NewConnector creates an unconnected Connector. No I/O happens until Connect.
func NewConnector(cfg Config, opts ...ConnectorOption) *Connector {
	c := &Connector{
		cfg:     cfg,
		factory: OpenBackend,
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = WithFields(c.logger, "component", "connector")
	return c
}

// NewConnectorFromBackend wraps an already constructed backend.
// The backend is still probed on the first Connect.
func NewConnectorFromBackend(backend Backend, opts ...ConnectorOption) *Connector {
	cfg := DefaultConfig()
	opts = append([]ConnectorOption{WithBackendFactory(func(context.Context, Config) (Backend, error) {
		return backend, nil
	})}, opts...)
	return NewConnector(cfg, opts...)
}

// Config returns the configuration the connector was built with
func (c *Connector) Config() Config {
	return c.cfg
}

// Mode reports the resolved storage mode; an unparseable mode reads as local
func (c *Connector) Mode() Mode {
	mode, err := ParseMode(string(c.cfg.Mode))
	if err != nil {
		return ModeLocal
	}
	return mode
}

// State returns the current lifecycle state without blocking
func (c *Connector) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Connector) setState(s ConnState) {
	from := ConnState(c.state.Swap(int32(s)))
	if from != s {
		c.logger.Debug("connection state changed", "from", from.String(), "to", s.String())
	}
}

// Connect returns the shared backend, building and probing it on first use.
//
// Configuration problems fail with ErrInvalidConfig before any network call.
// The liveness probe is retried Retry.Attempts times with a constant
// Retry.Delay between attempts; after that Connect fails with ErrConnection.
// A failed Connect leaves nothing behind and the next call starts over.
func (c *Connector) Connect(ctx context.Context) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend != nil {
		return c.backend, nil
	}

	if err := c.cfg.Validate(); err != nil {
		c.setState(StateFailed)
		c.logger.Error("invalid store configuration", "error", err)
		return nil, err
	}

	mode := c.Mode()
	c.setState(StateConnecting)
	c.logger.Info("initializing document store client", "mode", string(mode), "database", c.cfg.Database)
	start := time.Now()

	backend, err := c.factory(ctx, c.cfg)
	if err != nil {
		c.setState(StateFailed)
		c.logger.Error("error preparing document store client", "mode", string(mode), "error", err)
		if IsValidation(err) {
			return nil, err
		}
		return nil, WithContext(fmt.Errorf("%w: %w", ErrConnection, err), map[string]interface{}{
			"mode": string(mode),
		})
	}

	attempts := c.cfg.Retry.Attempts
	attempt := 0
	probe := func() error {
		attempt++
		c.metrics.Increment(MetricConnectAttempts, "mode", string(mode))
		c.logger.Info("pinging document store", "attempt", attempt, "attempts", attempts)

		pingCtx, cancel := c.withConnectTimeout(ctx)
		defer cancel()

		if err := backend.Ping(pingCtx); err != nil {
			c.logger.Warn("document store ping failed", "attempt", attempt, "error", err)
			if IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.Retry.Delay), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(probe, policy); err != nil {
		if closeErr := backend.Close(); closeErr != nil {
			c.logger.Warn("failed to close unreachable backend", "error", closeErr)
		}
		c.setState(StateFailed)
		c.metrics.Increment(MetricConnectFailures, "mode", string(mode))
		c.logger.Error("document store connection failed", "attempts", attempt, "error", err)
		return nil, WithContext(fmt.Errorf("%w: %w", ErrConnection, err), map[string]interface{}{
			"mode":     string(mode),
			"attempts": attempt,
		})
	}

	c.backend = backend
	c.setState(StateConnected)
	c.metrics.Timing(MetricConnectDuration, time.Since(start), "mode", string(mode))
	c.logger.Info("document store connection successful", "mode", string(mode), "attempts", attempt)
	return backend, nil
}

// HealthCheck connects if needed and probes the store.
// It never fails loudly: any error, or a panic from a driver, yields false.
func (c *Connector) HealthCheck(ctx context.Context) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("health check panicked", "panic", r)
			healthy = false
		}
	}()

	backend, err := c.Connect(ctx)
	if err != nil {
		c.logger.Warn("health check could not connect", "error", err)
		return false
	}

	pingCtx, cancel := c.withConnectTimeout(ctx)
	defer cancel()

	if err := backend.Ping(pingCtx); err != nil {
		c.logger.Warn("health check ping failed", "error", err)
		return false
	}
	return true
}

// Close releases the handle. The next Connect builds a new one.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return nil
	}
	err := c.backend.Close()
	c.backend = nil
	c.setState(StateUnconnected)
	return err
}

func (c *Connector) withConnectTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.ConnectTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.ConnectTimeout)
}
