// Package server exposes the bridge's health, readiness, catalog and metrics
// over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/mirbridge/internal/bridge"
	"github.com/danmuck/mirbridge/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Status is the read side of a bridge session.
type Status interface {
	State() bridge.State
	Catalog() bridge.Catalog
}

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	status Status
	router *gin.Engine
	logger zerolog.Logger
}

type options struct {
	corsOrigins []string
}

type Option func(*options)

// WithCORS allows read-only cross-origin requests from the given origins,
// e.g. a fleet dashboard.
func WithCORS(origins ...string) Option {
	return func(o *options) {
		o.corsOrigins = append(o.corsOrigins, origins...)
	}
}

func New(id, addr string, status Status, logger zerolog.Logger, opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	observability.RegisterMetrics()
	logger = logger.With().Str("component", "http").Logger()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestObserver(id, logger))
	if len(o.corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: o.corsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		status:   status,
		router:   r,
		logger:   logger,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) NodeID() string {
	return s.ID
}

func (s *Server) Kind() string {
	return "mirbridge"
}
