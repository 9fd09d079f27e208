package http

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/relaychat/pkg/observability"
	"github.com/rhuss/relaychat/pkg/transport"
)

// Server wraps an http.Server with the transport adapter and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	limiter    *clientLimiter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr              string
	MaxBodySize       int64
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Logger            *slog.Logger
	Static            fs.FS
	CORSOrigins       []string
	MetricsPath       string // empty disables /metrics

	// RateLimit caps chat requests per client IP per minute, with
	// RateBurst requests allowed at once. Zero disables limiting.
	RateLimit int
	RateBurst int
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":5500",
		MaxBodySize:       10 << 20, // 10 MB
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		Logger:            slog.Default(),
		CORSOrigins:       []string{"*"},
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithReadHeaderTimeout bounds how long a client may take to send headers.
func WithReadHeaderTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ReadHeaderTimeout = d }
}

// WithShutdownTimeout sets the graceful shutdown deadline. Streams still
// open when it expires are cancelled.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithStatic serves fsys as the single-page application.
func WithStatic(fsys fs.FS) ServerOption {
	return func(s *Server) { s.config.Static = fsys }
}

// WithCORSOrigins sets the allowed CORS origins. An empty list disables CORS.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) { s.config.CORSOrigins = origins }
}

// WithMetrics exposes Prometheus metrics at path.
func WithMetrics(path string) ServerOption {
	return func(s *Server) { s.config.MetricsPath = path }
}

// WithRateLimit limits each client IP to perMinute chat requests per
// minute, allowing bursts of up to burst requests.
func WithRateLimit(perMinute, burst int) ServerOption {
	return func(s *Server) {
		s.config.RateLimit = perMinute
		s.config.RateBurst = burst
	}
}

// NewServer creates a new transport server with the given handler and options.
// Default middleware (recovery, request ID, logging) is applied automatically.
func NewServer(streamer transport.ChatStreamer, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	adapterCfg := Config{
		MaxBodySize: s.config.MaxBodySize,
		Static:      s.config.Static,
	}
	if s.config.MetricsPath != "" {
		adapterCfg.Extra = map[string]http.Handler{
			"GET " + s.config.MetricsPath: promhttp.Handler(),
		}
	}

	defaultMW := []transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	}

	s.adapter = NewAdapter(streamer, adapterCfg, defaultMW...)
	if s.config.RateLimit > 0 {
		s.limiter = newClientLimiter(s.config.RateLimit, s.config.RateBurst)
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	return s
}

// Handler returns the complete HTTP handler: metrics, CORS, rate
// limiting, then the adapter routes.
func (s *Server) Handler() http.Handler {
	h := rateLimitMiddleware(s.limiter, s.adapter.Handler())
	return observability.MetricsMiddleware(corsMiddleware(s.config.CORSOrigins, h))
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

// Run listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.RunOn(ctx, ln)
}

// RunOn is Run on an existing listener.
func (s *Server) RunOn(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		errCh <- s.ServeOn(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// ServeOn serves on the given listener until Shutdown is called. Used for
// testing.
func (s *Server) ServeOn(ln net.Listener) error {
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for open requests. If
// ctx expires first, open chat streams are cancelled (which releases their
// upstream connections) and remaining connections are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gracefully", slog.Int("open_streams", s.adapter.InFlight().Len()))

	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		n := s.adapter.InFlight().CancelAll()
		s.logger.Warn("shutdown deadline reached, cancelled open streams", slog.Int("streams", n))
		return s.httpServer.Close()
	}
	if err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
