// cmd/ledger/root.go
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-ledger/internal/config"
	"github.com/rovshanmuradov/launchpad-ledger/internal/logger"
	"github.com/rovshanmuradov/launchpad-ledger/internal/runner"
)

// Version is set at build time.
var Version = "0.1.0"

type appKey struct{}

// app is the per-invocation state built in PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	var debug bool

	root := &cobra.Command{
		Use:   "ledger",
		Short: "Deterministic launchpad ledger",
		Long: `ledger executes batches of launchpad and AMM instructions against an
account store. Instructions on disjoint accounts run concurrently; the
resulting state is identical to serial execution.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			if debug {
				cfg.DebugLogging = true
			}

			logCfg := logger.DefaultConfig()
			logCfg.Debug = cfg.DebugLogging
			logCfg.LogFile = cfg.LogFile
			log, err := logger.New(logCfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{cfg: cfg, logger: log}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
				_ = logger.Sync(a.logger)
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults plus LEDGER_ environment when empty)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newDigestCmd())
	root.AddCommand(newEventsCmd())
	return root
}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	return a, nil
}

// withRunner initializes a runner, calls fn and always shuts it down.
func withRunner(cmd *cobra.Command, fn func(ctx context.Context, r *runner.Runner) error) error {
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := runner.WithSignals(cmd.Context(), a.logger)
	defer cancel()

	r, err := runner.NewRunner(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer r.Shutdown(context.WithoutCancel(ctx))

	if err := r.Initialize(ctx); err != nil {
		return err
	}
	return fn(ctx, r)
}
