// Package web exposes the broker over HTTP: health, per-user secrets CRUD,
// buffered and streaming message endpoints, the Google OAuth flow, and
// Prometheus metrics.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deskpilot/deskpilot/internal/auth"
	"github.com/deskpilot/deskpilot/internal/credentials"
	"github.com/deskpilot/deskpilot/internal/gcal"
	"github.com/deskpilot/deskpilot/internal/observability"
)

// Config wires the server's collaborators.
type Config struct {
	Sessions SessionRunner
	Secrets  credentials.Store
	OAuth    *gcal.OAuth
	JWT      *auth.JWTService
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Server is the HTTP front end. It implements http.Handler.
type Server struct {
	sessions SessionRunner
	secrets  credentials.Store
	oauth    *gcal.OAuth
	logger   *slog.Logger
	metrics  *observability.Metrics
	handler  http.Handler
}

// NewServer builds the route table. Everything except /health, /metrics,
// and the OAuth callback sits behind the bearer-token middleware.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sessions: cfg.Sessions,
		secrets:  cfg.Secrets,
		oauth:    cfg.OAuth,
		logger:   logger.With("component", "web"),
		metrics:  cfg.Metrics,
	}

	authed := auth.Middleware(cfg.JWT, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	// The callback arrives via redirect from Google, without a bearer
	// token; the state parameter identifies the user.
	mux.HandleFunc("GET /auth/google/callback", s.handleOAuthCallback)

	mux.Handle("POST /secrets", authed(http.HandlerFunc(s.handleStoreSecret)))
	mux.Handle("GET /secrets", authed(http.HandlerFunc(s.handleListSecrets)))
	mux.Handle("POST /secrets/get", authed(http.HandlerFunc(s.handleGetSecret)))
	mux.Handle("DELETE /secrets", authed(http.HandlerFunc(s.handleDeleteSecret)))
	mux.Handle("GET /send-message", authed(http.HandlerFunc(s.handleSendMessage)))
	mux.Handle("GET /stream", authed(http.HandlerFunc(s.handleStream)))
	mux.Handle("GET /auth/google/url", authed(http.HandlerFunc(s.handleOAuthURL)))

	s.handler = s.instrument(mux)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), elapsed.Seconds())
		}
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}
