// Package main is the entry point for the kubewatch binary. It
// supports two subcommands:
//
//   - serve: runs the watch route backend in front of a Kubernetes
//     API server
//   - watch: runs a watch client that keeps in-memory stores current
//     through one multiplexed stream
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otterscale/kubewatch/internal/cmd"
	"github.com/otterscale/kubewatch/internal/cmd/server"
	"github.com/otterscale/kubewatch/internal/cmd/watch"
	"github.com/otterscale/kubewatch/internal/config"
	"github.com/otterscale/kubewatch/internal/core"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	// Cancel on SIGINT (Ctrl+C) or SIGTERM (container runtime).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Cobra is configured with SilenceErrors: true, so we
		// print the error here for consistent formatting.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires all dependencies and executes the root Cobra command.
func run(ctx context.Context) error {
	rootCmd, cleanup, err := wireCmd()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	return rootCmd.ExecuteContext(ctx)
}

// newCmd is a Wire provider that constructs the root Cobra command and
// registers the serve and watch subcommands. The version is captured
// by closures passed to the Wire injectors.
func newCmd(conf *config.Config) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "kubewatch",
		Short:         "kubewatch: one multiplexed watch stream for many Kubernetes resources.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(conf.Debug())
		},
	}

	if err := conf.BindFlags(c.PersistentFlags(), config.CommonOptions); err != nil {
		return nil, err
	}

	v := core.Version(version)

	serveCmd, err := cmd.NewServeCommand(conf, func() (*server.Server, func(), error) {
		return wireServer(v)
	})
	if err != nil {
		return nil, err
	}

	watchCmd, err := cmd.NewWatchCommand(conf, func() (*watch.Watcher, func(), error) {
		return wireWatcher(v)
	})
	if err != nil {
		return nil, err
	}

	c.AddCommand(serveCmd, watchCmd)

	return c, nil
}

// setupLogging installs the default structured logger. Every
// component derives its logger from it.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
