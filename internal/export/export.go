package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-ledger/internal/ledger"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", s)
	}
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format       ExportFormat
	OpcodeFilter ledger.Opcode // only this opcode when set
	OnlySuccess  bool          // drop rejected receipts
	OnlyRejected bool          // drop committed receipts
	Digest       string        // state digest after the batch, recorded in JSON
	OutputDir    string
}

// ReceiptRow is one exported instruction outcome.
type ReceiptRow struct {
	Batch  uint64        `json:"batch"`
	Index  int           `json:"index"`
	Opcode ledger.Opcode `json:"opcode"`
	Status string        `json:"status"`
	Error  string        `json:"error,omitempty"`
	Events int           `json:"events"`
}

// CSVHeaders returns the column names for CSV exports.
func CSVHeaders() []string {
	return []string{"batch", "index", "opcode", "status", "error", "events"}
}

// ToCSV renders the row in CSVHeaders order.
func (r ReceiptRow) ToCSV() []string {
	return []string{
		strconv.FormatUint(r.Batch, 10),
		strconv.Itoa(r.Index),
		string(r.Opcode),
		r.Status,
		r.Error,
		strconv.Itoa(r.Events),
	}
}

// EventRow is one exported log entry.
type EventRow struct {
	Seq    uint64 `json:"seq"`
	Batch  uint64 `json:"batch"`
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Mint   string `json:"mint"`
	Amount uint64 `json:"amount"`
}

// ResultExporter writes batch results to disk.
type ResultExporter struct {
	logger *zap.Logger
}

// NewResultExporter creates a new result exporter
func NewResultExporter(logger *zap.Logger) *ResultExporter {
	return &ResultExporter{
		logger: logger,
	}
}

// Export writes the receipts of res matching options and returns the file path.
func (re *ResultExporter) Export(res *ledger.Result, options ExportOptions) (string, error) {
	if res == nil {
		return "", fmt.Errorf("nil result")
	}

	rows := re.filterReceipts(res, options)
	if len(rows) == 0 {
		return "", fmt.Errorf("no receipts match the export criteria")
	}

	filename := re.generateFilename(res.Seq, options)
	outputPath := filepath.Join(options.OutputDir, filename)

	if err := os.MkdirAll(options.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = re.exportToCSV(rows, outputPath)
	case FormatJSON:
		err = re.exportToJSON(res, rows, options, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	re.logger.Info("Results exported",
		zap.String("file", outputPath),
		zap.Int("count", len(rows)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (re *ResultExporter) filterReceipts(res *ledger.Result, options ExportOptions) []ReceiptRow {
	var rows []ReceiptRow

	for _, rc := range res.Receipts {
		if options.OpcodeFilter != "" && rc.Opcode != options.OpcodeFilter {
			continue
		}
		if options.OnlySuccess && !rc.OK() {
			continue
		}
		if options.OnlyRejected && rc.OK() {
			continue
		}

		row := ReceiptRow{
			Batch:  res.Seq,
			Index:  rc.Index,
			Opcode: rc.Opcode,
			Status: "committed",
			Events: len(rc.Events),
		}
		if !rc.OK() {
			row.Status = "rejected"
			row.Error = rc.Err.Error()
		}
		rows = append(rows, row)
	}

	return rows
}

func (re *ResultExporter) generateFilename(batch uint64, options ExportOptions) string {
	prefix := "receipts_all"
	switch {
	case options.OnlySuccess:
		prefix = "receipts_committed"
	case options.OnlyRejected:
		prefix = "receipts_rejected"
	}
	if options.OpcodeFilter != "" {
		prefix += "_" + string(options.OpcodeFilter)
	}

	return fmt.Sprintf("%s_batch%d.%s", prefix, batch, options.Format)
}

func (re *ResultExporter) exportToCSV(rows []ReceiptRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row.ToCSV()); err != nil {
			return fmt.Errorf("failed to write receipt: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (re *ResultExporter) exportToJSON(res *ledger.Result, rows []ReceiptRow, options ExportOptions, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time     `json:"export_time"`
		Batch      uint64        `json:"batch"`
		Digest     string        `json:"digest,omitempty"`
		Receipts   []ReceiptRow  `json:"receipts"`
		Events     []EventRow    `json:"events"`
		Summary    ExportSummary `json:"summary"`
	}{
		ExportTime: time.Now().UTC(),
		Batch:      res.Seq,
		Digest:     options.Digest,
		Receipts:   rows,
		Events:     eventRows(res),
		Summary:    CalculateSummary(res),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func eventRows(res *ledger.Result) []EventRow {
	rows := make([]EventRow, 0, len(res.Events))
	for _, env := range res.Events {
		rows = append(rows, EventRow{
			Seq:    env.Seq,
			Batch:  env.Batch,
			Index:  env.Index,
			Type:   string(env.Type()),
			Mint:   env.Mint().String(),
			Amount: env.Amount(),
		})
	}
	return rows
}

// ExportSummary contains summary statistics for one batch
type ExportSummary struct {
	Instructions int             `json:"instructions"`
	Committed    int             `json:"committed"`
	Rejected     int             `json:"rejected"`
	Events       int             `json:"events"`
	Lanes        int             `json:"lanes"`
	Conflicts    int             `json:"conflicts"`
	DurationMs   float64         `json:"duration_ms"`
	ByOpcode     []OpcodeSummary `json:"by_opcode"`
}

// OpcodeSummary counts outcomes for one opcode.
type OpcodeSummary struct {
	Opcode    ledger.Opcode `json:"opcode"`
	Committed int           `json:"committed"`
	Rejected  int           `json:"rejected"`
}

// CalculateSummary aggregates a batch result.
func CalculateSummary(res *ledger.Result) ExportSummary {
	summary := ExportSummary{
		Instructions: len(res.Receipts),
		Events:       len(res.Events),
		DurationMs:   float64(res.Duration.Microseconds()) / 1000,
	}
	if res.Plan != nil {
		summary.Lanes = len(res.Plan.Lanes)
		summary.Conflicts = res.Plan.Conflicts
	}

	byOpcode := make(map[ledger.Opcode]*OpcodeSummary)
	for _, rc := range res.Receipts {
		stats, exists := byOpcode[rc.Opcode]
		if !exists {
			stats = &OpcodeSummary{Opcode: rc.Opcode}
			byOpcode[rc.Opcode] = stats
		}
		if rc.OK() {
			summary.Committed++
			stats.Committed++
		} else {
			summary.Rejected++
			stats.Rejected++
		}
	}

	for _, stats := range byOpcode {
		summary.ByOpcode = append(summary.ByOpcode, *stats)
	}
	sort.Slice(summary.ByOpcode, func(i, j int) bool {
		return summary.ByOpcode[i].Opcode < summary.ByOpcode[j].Opcode
	})

	return summary
}
