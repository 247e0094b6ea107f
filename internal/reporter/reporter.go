// Package reporter renders import summaries and reconciliation results for
// terminal or programmatic consumption.
//
// Supported output formats:
//   - Console: human-readable output with status coloring
//   - JSON: structured data for programmatic consumption
//
// Cell errors are rendered with their human-visible spreadsheet coordinates
// so a user can jump straight to the offending cell in the source file.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"ledger-import-service/internal/importer"
	"ledger-import-service/internal/models"
	"ledger-import-service/internal/reconciler"

	"github.com/fatih/color"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON:
		return true
	default:
		return false
	}
}

// Config holds configuration options for report generation
type Config struct {
	Format        OutputFormat `json:"format"`
	UseColors     bool         `json:"use_colors"`
	MaxCellErrors int          `json:"max_cell_errors"`
}

// DefaultConfig returns a default report configuration
func DefaultConfig() *Config {
	return &Config{
		Format:        FormatConsole,
		UseColors:     true,
		MaxCellErrors: 20,
	}
}

// Validate validates the report configuration
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxCellErrors < 0 {
		return fmt.Errorf("max cell errors cannot be negative, got %d", c.MaxCellErrors)
	}
	return nil
}

// Reporter renders reports in the configured format
type Reporter struct {
	config *Config
}

// NewReporter creates a Reporter. A nil config uses defaults.
func NewReporter(config *Config) (*Reporter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reporter configuration: %w", err)
	}
	return &Reporter{config: config}, nil
}

// ImportReport bundles everything one import run produced
type ImportReport struct {
	Account     string                `json:"account"`
	File        string                `json:"file,omitempty"`
	Summary     *importer.ImportSummary `json:"summary"`
	CellErrors  []models.CellError    `json:"cell_errors,omitempty"`
	NewBalance  string                `json:"new_balance"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// WriteImportReport renders an import report to the writer
func (r *Reporter) WriteImportReport(w io.Writer, report *ImportReport) error {
	if r.config.Format == FormatJSON {
		return r.writeJSON(w, report)
	}
	return r.writeImportConsole(w, report)
}

func (r *Reporter) writeImportConsole(w io.Writer, report *ImportReport) error {
	header := color.New(color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	warn := color.New(color.FgYellow)
	if !r.config.UseColors {
		for _, c := range []*color.Color{header, good, bad, warn} {
			c.DisableColor()
		}
	}

	header.Fprintf(w, "Import report for account %s\n", report.Account)
	if report.File != "" {
		fmt.Fprintf(w, "Source file: %s\n", report.File)
	}

	fmt.Fprintln(w, report.Summary.String())

	skipped := report.Summary.TotalRows - report.Summary.ImportedRows
	if skipped == 0 {
		good.Fprintln(w, "All rows imported")
	} else {
		bad.Fprintf(w, "%d row(s) not imported\n", skipped)
	}

	fmt.Fprintf(w, "New balance: %s\n", report.NewBalance)

	if len(report.CellErrors) > 0 {
		warn.Fprintf(w, "%d cell error(s):\n", len(report.CellErrors))
		limit := len(report.CellErrors)
		if r.config.MaxCellErrors > 0 && r.config.MaxCellErrors < limit {
			limit = r.config.MaxCellErrors
		}
		for _, cellErr := range report.CellErrors[:limit] {
			fmt.Fprintf(w, "  %s: %s (%s)\n", cellErr.SpreadsheetLocation(), cellErr.Message, cellErr.Field)
		}
		if limit < len(report.CellErrors) {
			fmt.Fprintf(w, "  ... and %d more\n", len(report.CellErrors)-limit)
		}
	}

	return nil
}

// ReconcileReport bundles one reconciliation attempt for rendering
type ReconcileReport struct {
	Account     string             `json:"account"`
	Result      *reconciler.Result `json:"result"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// WriteReconcileReport renders a reconciliation report to the writer
func (r *Reporter) WriteReconcileReport(w io.Writer, report *ReconcileReport) error {
	if r.config.Format == FormatJSON {
		return r.writeJSON(w, report)
	}
	return r.writeReconcileConsole(w, report)
}

func (r *Reporter) writeReconcileConsole(w io.Writer, report *ReconcileReport) error {
	header := color.New(color.Bold)
	matched := color.New(color.FgGreen, color.Bold)
	mismatched := color.New(color.FgRed, color.Bold)
	notReady := color.New(color.FgYellow, color.Bold)
	if !r.config.UseColors {
		for _, c := range []*color.Color{header, matched, mismatched, notReady} {
			c.DisableColor()
		}
	}

	result := report.Result

	header.Fprintf(w, "Reconciliation for account %s at %s\n",
		report.Account, result.CheckpointDate.Format("2006-01-02"))

	switch result.Status {
	case reconciler.StatusMatched:
		matched.Fprintln(w, "Status: MATCHED")
		fmt.Fprintf(w, "Computed balance: %s\n", result.ComputedBalance.StringFixed(2))
	case reconciler.StatusMismatched:
		mismatched.Fprintln(w, "Status: MISMATCHED")
		fmt.Fprintf(w, "Computed balance: %s\n", result.ComputedBalance.StringFixed(2))
		fmt.Fprintf(w, "Asserted balance: %s\n", result.AssertedBalance.StringFixed(2))
		fmt.Fprintf(w, "Delta: %s\n", result.Delta.StringFixed(2))
	case reconciler.StatusNotReady:
		notReady.Fprintln(w, "Status: NOT READY")
		fmt.Fprintln(w, "The window contains unclassified transactions; no checkpoint was written")
	}

	fmt.Fprintf(w, "Transactions in window: %d\n", result.WindowSize)
	return nil
}

func (r *Reporter) writeJSON(w io.Writer, payload interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
