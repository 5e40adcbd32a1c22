// geoserver serves cities, states and security records over HTTP
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/adrianmcphee/geobase"
	"github.com/adrianmcphee/geobase/internal/api"
)

func main() {
	var (
		addr       = flag.String("addr", ":8000", "Address to listen on")
		configPath = flag.String("config", "", "YAML config file (environment variables still win)")
		dev        = flag.Bool("dev", false, "Human-readable logs")
		logLevel   = flag.String("log-level", "info", "Minimum log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger, err := newLogger(*logLevel, *dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*addr, *configPath, logger); err != nil {
		logger.Error("geoserver stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string, dev bool) (*geobase.ZapLogger, error) {
	if !dev {
		gin.SetMode(gin.ReleaseMode)
	}
	return geobase.NewZapLoggerWithOptions(geobase.LogOptions{Level: level, Development: dev})
}

func loadConfig(path string) (geobase.Config, error) {
	if path == "" {
		return geobase.ConfigFromEnv()
	}
	return geobase.LoadConfigFile(path)
}

func run(addr, configPath string, logger *geobase.ZapLogger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := geobase.NewPrometheusMetrics(registry)

	conn := geobase.NewConnector(cfg, geobase.WithLogger(logger), geobase.WithMetrics(metrics))
	defer conn.Close()
	store := geobase.NewDocumentStoreWithObservability(conn, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect eagerly so a bad store shows up at startup, not on the first request
	if _, err := conn.Connect(ctx); err != nil {
		logger.Warn("document store not reachable at startup, will retry on demand", "error", err)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(store, logger.With("component", "http").Desugar(), registry).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("geoserver listening", "addr", addr, "mode", string(conn.Mode()), "database", store.Database())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
