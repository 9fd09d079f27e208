// Command chat is a terminal client for a relaychat server.
//
// Each line typed is sent as a user message and the reply is printed as it
// streams. Ctrl-C interrupts a reply in progress; pressed while idle it
// exits. Commands: /clear, /history, /quit.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/relaychat/pkg/client"
	"github.com/rhuss/relaychat/pkg/debug"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("chat failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:           "chat",
		Short:         "Chat with a relaychat server from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug.Init("", "")
			return repl(cmd.Context(), serverURL, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	defaultURL := os.Getenv("RELAYCHAT_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:5500"
	}
	cmd.Flags().StringVarP(&serverURL, "url", "u", defaultURL, "relay base URL")

	return cmd
}

func repl(ctx context.Context, serverURL string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	render := newTermRenderer(out)
	sess, err := client.New(client.Config{BaseURL: serverURL, Renderer: render})
	if err != nil {
		return err
	}

	// Ctrl-C cancels a reply in progress, or quits when there is none.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		for {
			select {
			case sig := <-sigs:
				if sig == os.Interrupt && sess.Cancel() {
					render.Interrupted()
					continue
				}
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64<<10), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		render.prompt()
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = l
		}

		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/clear":
			sess.Clear()
			continue
		case "/history":
			for _, t := range sess.Transcript() {
				fmt.Fprintf(out, "  %s: %s\n", t.Role, t.Content)
			}
			continue
		}

		err := sess.Send(ctx, line)
		switch {
		case err == nil, errors.Is(err, client.ErrEmptyInput), errors.Is(err, context.Canceled):
		default:
			debug.Log("client", "send failed", "error", err)
		}
	}
}
