package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"ledger-import-service/cmd/ledgerimport/config"
	"ledger-import-service/internal/importer"
	"ledger-import-service/internal/ledger"
	"ledger-import-service/internal/models"
	"ledger-import-service/internal/reporter"
	"ledger-import-service/internal/tabular"
	apperrors "ledger-import-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags shared by the import and reconcile commands
var (
	statementFile  string
	sourceKindFlag string
	sheetName      string
	mappingSpec    string
	dateFormatID   string
	accountName    string
	currency       string
	openingBalance string
	createdBy      string
	outputFormat   string
	outputFile     string
	noColor        bool
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a bank statement file into a ledger account",
	Long: `Import reads a bank statement file (CSV or XLSX), normalizes its rows
according to the field mapping, and records each dated row as a signed
ledger transaction while advancing the account's running balance.

Rows without a parseable transaction date are skipped; other cell problems
are collected and reported without aborting the batch.

Examples:
  # CSV with the default column layout
  ledgerimport import --file statement.csv --opening-balance 1000

  # Custom mapping and date format
  ledgerimport import --file statement.csv \
    --mapping "date=0,desc=1,dr=2,cr=3" --date-format dd/MM/yyyy

  # Spreadsheet input with JSON output
  ledgerimport import --file statement.xlsx --sheet Transactions \
    --output-format json --output-file report.json`,

	PreRunE: validateStatementFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	addStatementFlags(importCmd)
}

// addStatementFlags registers the flags the import pipeline needs. The
// reconcile command runs the same pipeline first, so it registers them too.
func addStatementFlags(c *cobra.Command) {
	c.Flags().StringVarP(&statementFile, "file", "f", "", "path to the statement file (required)")
	c.Flags().StringVar(&sourceKindFlag, "source", "auto", "source kind: auto, csv, xlsx")
	c.Flags().StringVar(&sheetName, "sheet", "", "worksheet name for xlsx input (default: first sheet)")
	c.Flags().StringVarP(&mappingSpec, "mapping", "m", config.DefaultMappingSpec, "field mapping, field=column pairs")
	c.Flags().StringVar(&dateFormatID, "date-format", tabular.DefaultDateFormatID, "date format identifier, e.g. dd/MM/yyyy")
	c.Flags().StringVar(&accountName, "account-name", "Imported account", "display name for the ledger account")
	c.Flags().StringVar(&currency, "currency", "USD", "account currency code")
	c.Flags().StringVar(&openingBalance, "opening-balance", "0", "account opening balance")
	c.Flags().StringVar(&createdBy, "created-by", "ledgerimport", "actor recorded on imported transactions")
	c.Flags().StringVarP(&outputFormat, "output-format", "o", "console", "output format: console, json")
	c.Flags().StringVar(&outputFile, "output-file", "", "output file path (default: stdout)")
	c.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	c.MarkFlagRequired("file")
}

func validateStatementFlags(cmd *cobra.Command, args []string) error {
	if statementFile == "" {
		return fmt.Errorf("file is required")
	}
	if err := validateFileExists(statementFile, "statement file"); err != nil {
		return err
	}

	switch sourceKindFlag {
	case "auto", "csv", "xlsx":
	default:
		return fmt.Errorf("invalid source kind '%s'. Valid kinds: auto, csv, xlsx", sourceKindFlag)
	}

	if _, err := config.ParseMappingSpec(mappingSpec, dateFormatID); err != nil {
		return err
	}

	if _, err := decimal.NewFromString(openingBalance); err != nil {
		return fmt.Errorf("invalid opening balance '%s': %w", openingBalance, err)
	}

	if _, err := config.CreateReportConfig(outputFormat, !noColor); err != nil {
		return err
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}
	return nil
}

// importResult carries everything one import run leaves behind, so the
// reconcile command can keep working against the same stores.
type importResult struct {
	accounts     *ledger.MemoryAccountStore
	transactions *ledger.MemoryTransactionStore
	account      *models.BankAccount
	summary      *importer.ImportSummary
	cellErrors   []models.CellError
}

// runStatementImport executes the full parse-and-import pipeline against
// fresh in-memory stores.
func runStatementImport(ctx context.Context) (*importResult, error) {
	mapping, err := config.ParseMappingSpec(mappingSpec, dateFormatID)
	if err != nil {
		return nil, err
	}

	source, err := openStatementSource(statementFile, sourceKindFlag, sheetName)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	parser := tabular.NewParser(nil)
	rows, cellErrors, err := parser.Parse(source, mapping)
	if err != nil {
		return nil, err
	}

	opening, err := decimal.NewFromString(openingBalance)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "opening-balance", openingBalance, err)
	}

	accounts := ledger.NewMemoryAccountStore()
	transactions := ledger.NewMemoryTransactionStore()

	account := &models.BankAccount{
		ID:             uuid.NewString(),
		Name:           accountName,
		Currency:       currency,
		OpeningBalance: opening,
		CurrentBalance: opening,
	}
	if err := accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	summary, err := importer.NewService(accounts, transactions).
		ImportTransactions(ctx, rows, account.ID, createdBy)
	if err != nil {
		return nil, err
	}

	// Reload for the post-import balance.
	account, err = accounts.Get(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	return &importResult{
		accounts:     accounts,
		transactions: transactions,
		account:      account,
		summary:      summary,
		cellErrors:   cellErrors,
	}, nil
}

func openStatementSource(path, kindFlag, sheet string) (tabular.TabularSource, error) {
	var kind tabular.SourceKind
	switch kindFlag {
	case "csv":
		kind = tabular.SourceDelimited
	case "xlsx":
		kind = tabular.SourceSpreadsheet
	default:
		kind = tabular.DetectSourceKind(path)
	}

	if kind == tabular.SourceSpreadsheet && sheet != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, apperrors.StreamError(apperrors.CodeStreamUnreadable, path, err)
		}
		source, err := tabular.NewSpreadsheetSource(file, sheet)
		file.Close()
		if err != nil {
			return nil, err
		}
		return source, nil
	}

	return tabular.OpenFileSource(path, kind)
}

// outputWriter resolves the report destination from the output-file flag
func outputWriter() (*os.File, func(), error) {
	if outputFile == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, func() { file.Close() }, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Importing %s into account %q\n", statementFile, accountName)
	}

	result, err := runStatementImport(ctx)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(outputFormat, !noColor)
	if err != nil {
		return err
	}
	rep, err := reporter.NewReporter(reportConfig)
	if err != nil {
		return err
	}

	out, closeOut, err := outputWriter()
	if err != nil {
		return err
	}
	defer closeOut()

	return rep.WriteImportReport(out, &reporter.ImportReport{
		Account:     result.account.Name,
		File:        statementFile,
		Summary:     result.summary,
		CellErrors:  result.cellErrors,
		NewBalance:  result.account.CurrentBalance.StringFixed(2),
		GeneratedAt: time.Now(),
	})
}
