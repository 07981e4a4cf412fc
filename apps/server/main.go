package main

import (
	"context"
	"fmt"
	"os"

	"pumpkin-tracker/apps/server/internal/config"
	"pumpkin-tracker/apps/server/internal/logging"
	"pumpkin-tracker/apps/server/internal/store"
	"pumpkin-tracker/apps/server/internal/tracker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "tracker",
		Short: "Pumpkin King giveaway tracker",
		Long: `tracker keeps a shared tally of giveaway winners.

Paste pipe-delimited winner tables to count wins per participant; anyone
reaching 10 wins is promoted to Pumpkin King. Run without a subcommand to
start the HTTP and WebSocket server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.verbose {
				cfg.Debug = true
			}
			a.cfg = cfg

			logger, err := logging.New(cfg.Debug)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newServeCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newClearCmd(a),
		newLeaderboardCmd(a),
	)
	return root
}

// openTracker opens the configured store and a tracker on top of it. The
// returned func releases both.
func (a *app) openTracker(ctx context.Context) (*tracker.Tracker, func(), error) {
	st, mode, err := store.Open(a.cfg.Store, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", mode, err)
	}
	a.logger.Debug("store opened", zap.String("mode", mode))

	tr := tracker.Open(ctx, st, a.logger, tracker.Options{
		PageSize:       a.cfg.PageSize,
		ClearTicketTTL: a.cfg.ClearTicketTTL,
	})
	return tr, func() {
		tr.Close()
		if err := st.Close(); err != nil {
			a.logger.Warn("close store failed", zap.Error(err))
		}
	}, nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
