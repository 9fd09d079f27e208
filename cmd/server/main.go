// Command server runs the relaychat relay and serves the browser client.
//
// Configuration is layered: defaults, a YAML file (--config,
// RELAYCHAT_CONFIG, ./config.yaml or /etc/relaychat/config.yaml),
// environment variables, then command-line flags.
//
//	OPENROUTER_API_KEY      upstream credential (or RELAYCHAT_API_KEY)
//	PORT                    listen port, default 5500 (or RELAYCHAT_PORT)
//	RELAYCHAT_UPSTREAM_URL  OpenAI-compatible base URL
//	RELAYCHAT_MODEL         fixed upstream model identifier
//	RELAYCHAT_STATIC_DIR    serve the web client from disk
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/relaychat/pkg/config"
	"github.com/rhuss/relaychat/pkg/debug"
	"github.com/rhuss/relaychat/pkg/provider/openaicompat"
	"github.com/rhuss/relaychat/pkg/relay"
	transporthttp "github.com/rhuss/relaychat/pkg/transport/http"
	"github.com/rhuss/relaychat/web"
)

type options struct {
	configPath  string
	port        int
	staticDir   string
	upstreamURL string
	model       string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Relay chat completions from an OpenAI-compatible upstream as NDJSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	f.IntVarP(&opts.port, "port", "p", 0, "listen port (overrides config and PORT)")
	f.StringVar(&opts.staticDir, "static-dir", "", "serve the web client from this directory instead of the embedded bundle")
	f.StringVar(&opts.upstreamURL, "upstream-url", "", "OpenAI-compatible API base URL")
	f.StringVar(&opts.model, "model", "", "upstream model identifier")

	return cmd
}

// loadConfig loads the layered configuration and applies explicitly set
// flags on top.
func loadConfig(cmd *cobra.Command, opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if f.Changed("static-dir") {
		cfg.Web.StaticDir = opts.staticDir
	}
	if f.Changed("upstream-url") {
		cfg.Upstream.BaseURL = opts.upstreamURL
	}
	if f.Changed("model") {
		cfg.Upstream.Model = opts.model
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)
	for _, w := range cfg.Warnings() {
		slog.Warn(w)
	}

	prov, err := openaicompat.New(openaicompat.Config{
		BaseURL: cfg.Upstream.BaseURL,
		APIKey:  cfg.Upstream.APIKey,
		Timeout: cfg.Upstream.Timeout,
		Referer: cfg.Upstream.Referer,
		Title:   cfg.Upstream.Title,
	})
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	rel, err := relay.New(prov, relay.Config{Model: cfg.Upstream.Model})
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}

	var static fs.FS = web.FS()
	if cfg.Web.StaticDir != "" {
		static = os.DirFS(cfg.Web.StaticDir)
		slog.Info("serving web client from disk", "dir", cfg.Web.StaticDir)
	}

	metrics := cfg.Observability.Metrics
	serverOpts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(slog.Default()),
		transporthttp.WithStatic(static),
		transporthttp.WithCORSOrigins(cfg.Web.CORSOrigins),
	}
	if rl := cfg.Server.RateLimit; rl.RequestsPerMinute > 0 {
		serverOpts = append(serverOpts, transporthttp.WithRateLimit(rl.RequestsPerMinute, rl.Burst))
	}
	if metrics.Enabled && metrics.Addr == "" {
		serverOpts = append(serverOpts, transporthttp.WithMetrics(metrics.Path))
	}
	srv := transporthttp.NewServer(rel, serverOpts...)

	slog.Info("relay configured",
		"upstream", cfg.Upstream.BaseURL,
		"model", cfg.Upstream.Model,
		"port", cfg.Server.Port,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if metrics.Enabled && metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, metrics.Addr, metrics.Path, cfg.Server.ShutdownTimeout)
		})
	}
	return g.Wait()
}

// serveMetrics exposes Prometheus metrics on their own listener until ctx
// is done.
func serveMetrics(ctx context.Context, addr, path string, shutdownTimeout time.Duration) error {
	mux := http.NewServeMux()
	mux.Handle("GET "+path, promhttp.Handler())
	ms := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics server starting", "addr", addr, "path", path)
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return ms.Shutdown(shutdownCtx)
}
