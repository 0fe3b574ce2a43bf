// Command lpctl queries the learning platform the way the dashboard does.
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

	"learner-dashboard/internal/app"
	"learner-dashboard/internal/config"
	"learner-dashboard/internal/logging"
	"learner-dashboard/internal/queries"
)

var (
	configPath string
	outputJSON bool
	verbose    bool

	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lpctl",
	Short: "Inspect courses, learning paths and the composed dashboard",
	Long: `lpctl runs the dashboard queries against the learning platform and prints
the merged records.

Configuration is read from --config (or $LPD_CONFIG), .env and LPD_* variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log platform calls to stderr")
}

// session is the query service built for one command run.
type session struct {
	cfg config.Config
	svc *queries.Service
}

func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Format: "console"})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	svc, _, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, svc: svc}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
