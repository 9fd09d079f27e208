// Command mock-upstream runs a deterministic OpenAI-compatible streaming
// server for local demos and tests. Point the relay at it with
//
//	RELAYCHAT_UPSTREAM_URL=http://localhost:9090/v1
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/relaychat/pkg/debug"
	"github.com/rhuss/relaychat/pkg/mockupstream"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("mock upstream failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		port      int
		apiKey    string
		slowDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:           "mock-upstream",
		Short:         "Serve canned chat completion streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug.Init("", "")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr: fmt.Sprintf(":%d", port),
				Handler: mockupstream.Handler(mockupstream.Config{
					APIKey:    apiKey,
					SlowDelay: slowDelay,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				slog.Info("mock upstream starting", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				slog.Info("mock upstream shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	f := cmd.Flags()
	f.IntVarP(&port, "port", "p", 9090, "listen port")
	f.StringVar(&apiKey, "api-key", os.Getenv("MOCK_API_KEY"), "require this bearer credential")
	f.DurationVar(&slowDelay, "slow-delay", 100*time.Millisecond, "pause between tokens of the \"slow\" reply")

	return cmd
}
