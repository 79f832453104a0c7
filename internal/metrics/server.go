package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerConfig configures the telemetry HTTP endpoint.
type ServerConfig struct {
	Addr   string
	Logger *slog.Logger

	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Ready gates /readyz. Nil means always ready.
	Ready func() bool
}

// Server exposes /metrics, liveness and readiness, plus any extra
// handlers registered before Start.
type Server struct {
	cfg      ServerConfig
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
}

// NewServer builds the router. Nothing listens until Start.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelWarn),
	}))
	s.mux.HandleFunc("/healthz", s.live)
	s.mux.HandleFunc("/readyz", s.ready)

	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	return s
}

func (s *Server) live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

func (s *Server) ready(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if s.cfg.Ready != nil && !s.cfg.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "waiting for first frame")
		return
	}
	fmt.Fprintln(w, "ok")
}

// Handle registers an extra endpoint. Must be called before Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds the address, returning any bind error, and serves in the
// background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.cfg.Logger.Info("metrics_server_listening", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.cfg.Logger.Error("metrics_server_error", "error", err)
		}
	}()
	return nil
}

// Shutdown drains in-flight scrapes. It is a no-op before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	s.cfg.Logger.Debug("metrics_server_stopping")
	return s.server.Shutdown(ctx)
}

// Addr is the bound address after Start, or the configured one before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}
