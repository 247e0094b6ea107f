package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"ledger-import-service/cmd/ledgerimport/config"
	"ledger-import-service/internal/ledger"
	"ledger-import-service/internal/reconciler"
	"ledger-import-service/internal/reporter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	assertBalance      string
	checkpointDateFlag string
	requireClassified  bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Import a statement and validate an asserted closing balance",
	Long: `Reconcile imports a bank statement and then checks the asserted closing
balance at the checkpoint date against the balance computed from the
imported transactions. A matching or mismatching checkpoint is recorded;
a window containing unclassified transactions records nothing.

Examples:
  # Import and reconcile against a bank-reported closing balance
  ledgerimport reconcile --file statement.csv --opening-balance 1000 \
    --assert-balance 3487.50 --checkpoint-date 2024-02-29

  # Require every imported transaction to carry a category first
  ledgerimport reconcile --file statement.csv \
    --assert-balance 1300 --checkpoint-date 2024-03-31 --require-classified`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	addStatementFlags(reconcileCmd)

	reconcileCmd.Flags().StringVar(&assertBalance, "assert-balance", "", "asserted closing balance (required)")
	reconcileCmd.Flags().StringVar(&checkpointDateFlag, "checkpoint-date", "", "checkpoint date, YYYY-MM-DD (required)")
	reconcileCmd.Flags().BoolVar(&requireClassified, "require-classified", false, "refuse to reconcile windows with unclassified transactions")

	reconcileCmd.MarkFlagRequired("assert-balance")
	reconcileCmd.MarkFlagRequired("checkpoint-date")
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	if err := validateStatementFlags(cmd, args); err != nil {
		return err
	}

	if _, err := decimal.NewFromString(assertBalance); err != nil {
		return fmt.Errorf("invalid asserted balance '%s': %w", assertBalance, err)
	}
	if _, err := time.Parse("2006-01-02", checkpointDateFlag); err != nil {
		return fmt.Errorf("invalid checkpoint date format. Use YYYY-MM-DD: %w", err)
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Importing %s, then reconciling at %s\n", statementFile, checkpointDateFlag)
	}

	result, err := runStatementImport(ctx)
	if err != nil {
		return err
	}

	asserted, err := decimal.NewFromString(assertBalance)
	if err != nil {
		return fmt.Errorf("invalid asserted balance '%s': %w", assertBalance, err)
	}
	checkpointDate, err := time.Parse("2006-01-02", checkpointDateFlag)
	if err != nil {
		return fmt.Errorf("invalid checkpoint date format. Use YYYY-MM-DD: %w", err)
	}

	var oracle reconciler.ClassificationOracle = ledger.AlwaysClassified{}
	if requireClassified {
		oracle = ledger.CategoryOracle{}
	}

	service := reconciler.NewService(
		result.accounts,
		result.transactions,
		ledger.NewMemoryCheckpointStore(),
		oracle,
	)

	reconcileResult, err := service.Reconcile(ctx, result.account.ID, checkpointDate, asserted)
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

	if err := rep.WriteImportReport(out, &reporter.ImportReport{
		Account:     result.account.Name,
		File:        statementFile,
		Summary:     result.summary,
		CellErrors:  result.cellErrors,
		NewBalance:  result.account.CurrentBalance.StringFixed(2),
		GeneratedAt: time.Now(),
	}); err != nil {
		return err
	}

	return rep.WriteReconcileReport(out, &reporter.ReconcileReport{
		Account:     result.account.Name,
		Result:      reconcileResult,
		GeneratedAt: time.Now(),
	})
}
