// Package opsserver exposes the index service's operational surface: a
// liveness probe and a Prometheus metrics endpoint, served alongside (but
// independently of) the refresh loop itself.
package opsserver

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	routeHealthz = "/healthz"
	routeMetrics = "/metrics"
)

// Server is the ops HTTP surface: /healthz and /metrics.
type Server struct {
	router *chi.Mux

	ready atomic.Bool
}

// New returns a Server backed by gatherer for /metrics. logger drives the
// per-request access log.
func New(logger zerolog.Logger, gatherer promclient.Gatherer) *Server {
	s := &Server{}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	router.Get(routeHealthz, s.getHealthz)
	router.Handle(routeMetrics, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router = router

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// MarkReady flips /healthz to 200. Call it once the orchestrator has
// completed its first refresh cycle.
func (s *Server) MarkReady() { s.ready.Store(true) }

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			startedAt := time.Now()
			reqID := middleware.GetReqID(r.Context())

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("elapsed", time.Since(startedAt)).
					Str("from", r.RemoteAddr).
					Str("req_id", reqID).
					Int("bytes", ww.BytesWritten()).
					Msg(fmt.Sprintf("%s %s", r.Method, r.URL.Path))
			}()

			next.ServeHTTP(ww, r)
		}

		return http.HandlerFunc(fn)
	}
}
