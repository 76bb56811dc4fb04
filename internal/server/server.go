package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"phrasematch/config"
	"phrasematch/internal/adapter/metrics"
	"phrasematch/internal/usecase"
)

const defaultShutdownTimeout = 15 * time.Second

// Server is the phrasematch HTTP service.
type Server struct {
	cfg     config.ServerConfig
	handler *Handler
	metrics *metrics.Metrics
	mux     *http.ServeMux
	log     *logrus.Entry
}

// New wires the routes. m may be nil, in which case /metrics is not served.
func New(cfg config.ServerConfig, metricsCfg config.MetricsConfig, search *usecase.SearchUseCase, m *metrics.Metrics, log *logrus.Entry) *Server {
	s := &Server{
		cfg:     cfg,
		handler: NewHandler(search, cfg.MaxBatch, log),
		metrics: m,
		mux:     http.NewServeMux(),
		log:     log.WithField("component", "server"),
	}
	s.routes(metricsCfg)
	return s
}

func (s *Server) routes(metricsCfg config.MetricsConfig) {
	s.route("GET /api/v1/search", s.handler.Search)
	s.route("POST /api/v1/search/batch", s.handler.SearchBatch)
	s.route("GET /api/v1/snapshot", s.handler.Snapshot)
	s.route("POST /api/v1/reload", s.handler.Reload)
	s.route("GET /api/v1/stats", s.handler.Stats)
	s.route("GET /health", s.handler.Health)

	if s.metrics != nil && metricsCfg.Enabled {
		path := metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, s.metrics.Handler())
	}
}

func (s *Server) route(pattern string, fn http.HandlerFunc) {
	s.mux.Handle(pattern, instrument(pattern, s.metrics, s.log, fn))
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down
// gracefully within cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	shutdownDone := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.log.Info("shutdown signal received")
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		shutdownDone <- srv.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", ln.Addr().String()).Info("listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownDone; err != nil {
		return err
	}
	s.log.Info("server stopped")
	return nil
}
