// cmd/ledger/run.go
package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/launchpad-ledger/internal/export"
	"github.com/rovshanmuradov/launchpad-ledger/internal/ledger"
	"github.com/rovshanmuradov/launchpad-ledger/internal/runner"
)

type runOptions struct {
	batch        string
	exportDir    string
	exportFormat string
	onlyRejected bool
	metricsFile  string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a batch file",
		Example: `  # Run a batch against the in-memory store
  ledger run --batch batches/launch.yaml

  # Persist to postgres and export rejected receipts
  LEDGER_STORAGE_DRIVER=postgres LEDGER_STORAGE_POSTGRES_URL=postgres://... \
    ledger run --batch batches/launch.yaml --export-dir out --only-rejected`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, func(ctx context.Context, r *runner.Runner) error {
				return runBatch(ctx, cmd, r, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.batch, "batch", "b", "", "batch YAML file")
	cmd.Flags().StringVar(&opts.exportDir, "export-dir", "", "write receipts to this directory")
	cmd.Flags().StringVar(&opts.exportFormat, "export-format", string(export.FormatJSON), "export format (csv|json)")
	cmd.Flags().BoolVar(&opts.onlyRejected, "only-rejected", false, "export rejected receipts only")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write prometheus metrics in text format")
	_ = cmd.MarkFlagRequired("batch")

	return cmd
}

func runBatch(ctx context.Context, cmd *cobra.Command, r *runner.Runner, opts *runOptions) error {
	format, err := export.ParseFormat(opts.exportFormat)
	if err != nil {
		return err
	}

	report, err := r.Run(ctx, opts.batch)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)

	if opts.exportDir != "" {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		path, err := export.NewResultExporter(a.logger).Export(report.Result, export.ExportOptions{
			Format:       format,
			OnlyRejected: opts.onlyRejected,
			Digest:       report.Digest,
			OutputDir:    opts.exportDir,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported: %s\n", path)
	}

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, r.Metrics().Registry()); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// receiptTable renders receipts for w. Colors follow w's terminal profile, so
// pipes and files get plain text.
func receiptTable(w io.Writer, receipts []ledger.Receipt) string {
	re := lipgloss.NewRenderer(w)
	header := re.NewStyle().Bold(true).Padding(0, 1)
	cell := re.NewStyle().Padding(0, 1)
	rejected := cell.Foreground(lipgloss.Color("#FF5F87"))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(re.NewStyle().Foreground(lipgloss.Color("#626262"))).
		Headers("INDEX", "OPCODE", "STATUS", "DETAIL")

	for _, rc := range receipts {
		status, detail := "ok", ""
		if !rc.OK() {
			status, detail = "rejected", rc.Err.Error()
		}
		t.Row(strconv.Itoa(rc.Index), string(rc.Opcode), status, detail)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return header
		case row >= 0 && row < len(receipts) && !receipts[row].OK():
			return rejected
		default:
			return cell
		}
	})
	return t.String()
}

func printReport(w io.Writer, report *runner.Report) {
	res := report.Result
	fmt.Fprintln(w, receiptTable(w, res.Receipts))

	for _, env := range res.Events {
		fmt.Fprintf(w, "event #%d %s mint=%s amount=%d (instruction %d)\n",
			env.Seq, env.Type(), env.Mint(), env.Amount(), env.Index)
	}

	summary := export.CalculateSummary(res)
	fmt.Fprintf(w, "batch %d: %d committed, %d rejected, %d lanes, %d conflicts in %s\n",
		res.Seq, summary.Committed, summary.Rejected, summary.Lanes, summary.Conflicts, res.Duration)
	fmt.Fprintf(w, "run %s digest %s\n", report.RunID, report.Digest)
}
