package cmd

import (
	"fmt"
	"os"
	"strings"

	"ledger-import-service/pkg/errors"
	"ledger-import-service/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleCommandError handles a command failure and returns the process exit code
func HandleCommandError(err error) int {
	return NewCLIErrorHandler().HandleError(err)
}

// HandleError handles errors and provides user-friendly messages
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if ledgerErr, ok := errors.AsLedgerError(err); ok {
		return h.handleLedgerError(ledgerErr)
	}

	return h.handleGenericError(err)
}

// handleLedgerError handles LedgerError with detailed context
func (h *CLIErrorHandler) handleLedgerError(err *errors.LedgerError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-LedgerError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory") {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if os.IsPermission(err) || strings.Contains(err.Error(), "permission denied") {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if !h.verbose {
		fmt.Fprintf(os.Stderr, "\nRun with --verbose for more details\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryStream:
		return `Stream error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• For xlsx input, confirm the workbook and sheet name are valid
• Try converting the file to CSV and importing again`

	case errors.CategoryNormalization:
		return `Normalization error help:
• Verify the field mapping matches the file's column layout
• Check that the date format identifier matches the statement's dates
• Ensure amounts are plain decimal numbers without currency symbols
• Use 'ledgerimport import --help' for mapping examples`

	case errors.CategoryImport:
		return `Import error help:
• Confirm the target account exists before importing
• Check the statement file for rows with missing or malformed dates
• Re-run with --verbose to see which rows were skipped and why`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Checkpoint dates must be strictly later than the latest checkpoint
• Verify the asserted closing balance and checkpoint date
• Classify all transactions in the window before reconciling
• Check the opening balance used to anchor the computation`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'ledgerimport import --help' to see all available options
• Try running with default settings first`

	default:
		return `For more help:
• Use 'ledgerimport --help' for general help
• Use 'ledgerimport import --help' for command-specific help
• Check the documentation for detailed examples
• Report bugs or ask for help on the project repository`
	}
}
