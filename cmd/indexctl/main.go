// Package main implements indexctl, the operator CLI for the compliance
// search index. It works directly against the configured record store and
// index snapshot, without a running searchd.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/app"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/logger"
)

var (
	configPath string
	logLevel   string
	version    = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "indexctl",
		Short: "Operate the compliance search index",
		Long: `indexctl rebuilds, inspects and queries the compliance search index.

It reads the same configuration as searchd and opens the record store and
index snapshot directly.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newRebuildCmd(), newStatsCmd(), newSearchCmd(), newSuggestCmd(), newExportCmd())
	return root
}

// openApp loads config and opens the stack without the startup rebuild;
// an empty or unreadable snapshot still triggers one.
func openApp(cmd *cobra.Command) (*app.App, context.Context, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.SetupWriter(cmd.ErrOrStderr(), logLevel, "text")
	cfg.Index.RebuildOnStart = false

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	a, err := app.Open(ctx, cfg)
	if err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("opening index: %w", err)
	}
	return a, ctx, func() {
		_ = a.Close()
		stop()
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
