// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

// Package observability provides HTTP endpoints for metrics and health
// checks, plus the auth metrics recorded by the session lifecycle.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the service is ready to accept work.
type ReadinessChecker func() bool

// Package-level auth counters. The session lifecycle service records
// into these without needing a Server instance; the Server registers
// them when one is started.
var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionforge_logins_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"status"},
	)

	rotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionforge_token_rotations_total",
			Help: "Total number of refresh-token rotation attempts by outcome",
		},
		[]string{"status"},
	)

	sessionsRevokedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionforge_sessions_revoked_total",
			Help: "Total number of refresh tokens revoked",
		},
	)

	expiredSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionforge_expired_tokens_swept_total",
			Help: "Total number of expired refresh tokens removed by the sweeper",
		},
	)
)

// RecordLogin increments the login counter. Status is "success" or
// "failure".
func RecordLogin(status string) {
	loginsTotal.WithLabelValues(status).Inc()
}

// RecordRotation increments the rotation counter. Status is "success"
// or "failure".
func RecordRotation(status string) {
	rotationsTotal.WithLabelValues(status).Inc()
}

// RecordSessionsRevoked adds to the revocation counter.
func RecordSessionsRevoked(count int) {
	sessionsRevokedTotal.Add(float64(count))
}

// RecordExpiredSwept adds to the sweeper counter.
func RecordExpiredSwept(count int64) {
	expiredSweptTotal.Add(float64(count))
}

// Server provides HTTP endpoints for observability (metrics and health
// probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr is a "host:port" listen address (":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	// Own registry to avoid polluting the global one.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(loginsTotal, rotationsTotal, sessionsRevokedTotal, expiredSweptTotal)

	return &Server{
		addr:     addr,
		registry: registry,
		isReady:  readinessChecker,
	}
}

// Start begins serving observability endpoints. It returns an error
// channel that receives any server failure after startup; the channel
// is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state so the server can be stopped again.
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the listen address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
