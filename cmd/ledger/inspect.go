// cmd/ledger/inspect.go
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/launchpad-ledger/internal/runner"
)

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Print the state digest of the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, func(ctx context.Context, r *runner.Runner) error {
				digest, err := r.Digest(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), digest)
				return nil
			})
		},
	}
}

func newEventsCmd() *cobra.Command {
	var since uint64

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List persisted events",
		Long:  "List events from the durable log. Requires the postgres storage driver to show anything across runs.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, func(ctx context.Context, r *runner.Runner) error {
				envs, err := r.Events(ctx, since)
				if err != nil {
					return err
				}
				for _, env := range envs {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\tbatch=%d\tindex=%d\t%s\t%s\t%d\n",
						env.Seq, env.Batch, env.Index, env.Type(), env.Mint(), env.Amount())
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "only events with a greater sequence number")
	return cmd
}
