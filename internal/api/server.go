// Package api exposes the repositories over HTTP.
package api

import (
	"errors"
	"net/http"
	"sort"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/adrianmcphee/geobase"
	"github.com/adrianmcphee/geobase/cities"
	"github.com/adrianmcphee/geobase/security"
	"github.com/adrianmcphee/geobase/states"
)

// Response keys
const (
	SuccessKey   = "Success"
	ErrorKey     = "Error"
	CitiesKey    = "Cities"
	StatesKey    = "States"
	EndpointsKey = "Available endpoints"
	HelloKey     = "hello"
)

// Server routes HTTP requests to the city, state and security repositories
type Server struct {
	store    *geobase.DocumentStore
	cache    *geobase.ReadCache
	cities   *cities.Repository
	states   *states.Repository
	security *security.Service
	logger   *zap.Logger
	router   *gin.Engine
}

// NewServer builds the router. A nil registry serves the default Prometheus registry on /metrics.
func NewServer(store *geobase.DocumentStore, logger *zap.Logger, registry *prometheus.Registry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:    store,
		cache:    geobase.NewReadCache(store),
		cities:   cities.New(store),
		states:   states.New(store),
		security: security.New(store),
		logger:   logger,
	}

	router := gin.New()

	// Access log and panic recovery, both through zap
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	router.GET("/hello", s.hello)
	router.GET("/endpoints", s.endpoints)
	router.GET("/health", s.health)

	var metrics http.Handler = promhttp.Handler()
	if registry != nil {
		metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	router.GET("/metrics", gin.WrapH(metrics))

	router.GET("/cities", s.listCities)
	router.POST("/cities", s.createCity)
	router.PUT("/cities", s.setCityPopulation)
	router.DELETE("/cities", s.deleteCity)
	router.GET("/cities/:id", s.getCity)

	router.GET("/states", s.listStates)
	router.POST("/states", s.createState)
	router.PUT("/states", s.setStatePopulation)
	router.DELETE("/states", s.deleteState)
	router.GET("/states/:code", s.getState)

	router.GET("/security/:feature", s.getFeature)

	s.router = router
	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{HelloKey: "world"})
}

func (s *Server) endpoints(c *gin.Context) {
	seen := make(map[string]bool)
	var paths []string
	for _, route := range s.router.Routes() {
		if !seen[route.Path] {
			seen[route.Path] = true
			paths = append(paths, route.Path)
		}
	}
	sort.Strings(paths)
	c.JSON(http.StatusOK, gin.H{EndpointsKey: paths})
}

func (s *Server) health(c *gin.Context) {
	conn := s.store.Connector()
	if !conn.HealthCheck(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "state": conn.State().String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": conn.State().String()})
}

func (s *Server) getFeature(c *gin.Context) {
	name := c.Param("feature")
	perms, ok := s.security.ReadFeature(c.Request.Context(), name)
	if !ok {
		s.handleError(c, geobase.WithContext(geobase.ErrNotFound, map[string]interface{}{
			"feature": name,
		}))
		return
	}
	c.JSON(http.StatusOK, gin.H{name: perms})
}

// statusFor maps an error kind onto an HTTP status.
// A bad store configuration is the server's fault, not the caller's.
func statusFor(err error) int {
	switch {
	case errors.Is(err, geobase.ErrInvalidConfig):
		return http.StatusInternalServerError
	case geobase.IsValidation(err):
		return http.StatusBadRequest
	case geobase.IsStorage(err), geobase.IsConnection(err):
		return http.StatusInternalServerError
	case geobase.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, geobase.ErrNotModified):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Sugar().Errorw("Internal server error",
			"path", c.Request.URL.Path,
			"error", err,
		)
		msg := "The server had an internal error."
		if geobase.IsConnection(err) {
			msg = "There is a connection error"
		}
		c.JSON(status, gin.H{ErrorKey: msg})
		return
	}

	s.logger.Sugar().Infow("Request rejected",
		"path", c.Request.URL.Path,
		"status", status,
		"error", err,
	)
	c.JSON(status, gin.H{ErrorKey: err.Error()})
}

func (s *Server) invalidInput(c *gin.Context, err error) {
	s.handleError(c, geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
		"reason": err.Error(),
	}))
}
