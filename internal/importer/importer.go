// Package importer converts normalized statement rows into ledger
// transactions while maintaining the owning account's running balance.
//
// Import is best-effort per batch: a row that cannot be persisted is logged
// and excluded from the imported count, but never stops the remaining rows.
// There is no batch-wide atomicity and no de-duplication of re-imported
// files; callers retrying a batch must account for duplicates.
package importer

import (
	"context"
	"fmt"
	"time"

	"ledger-import-service/internal/models"
	"ledger-import-service/pkg/errors"
	"ledger-import-service/pkg/logger"
)

// AccountStore resolves and persists bank accounts
type AccountStore interface {
	Get(ctx context.Context, accountID string) (*models.BankAccount, error)
	Save(ctx context.Context, account *models.BankAccount) error
}

// TransactionStore persists ledger transactions and serves window queries
type TransactionStore interface {
	Save(ctx context.Context, tx *models.LedgerTransaction) error
	FindInWindow(ctx context.Context, accountID string, fromExclusive, toInclusive time.Time) ([]*models.LedgerTransaction, error)
}

// ImportSummary reports how many of the batch's rows became transactions
type ImportSummary struct {
	TotalRows    int `json:"total_rows"`
	ImportedRows int `json:"imported_rows"`
}

// String renders the user-visible summary line
func (s *ImportSummary) String() string {
	return fmt.Sprintf("Total Transactions To Import %d Transactions Imported %d", s.TotalRows, s.ImportedRows)
}

// Service is the import orchestrator
type Service struct {
	accounts     AccountStore
	transactions TransactionStore
	clock        func() time.Time
	logger       logger.Logger
}

// NewService creates an import orchestrator over the given stores
func NewService(accounts AccountStore, transactions TransactionStore) *Service {
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		clock:        time.Now,
		logger:       logger.GetGlobalLogger().WithComponent("importer"),
	}
}

// WithClock overrides the audit timestamp source, used by tests
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// ImportTransactions converts normalized rows into ledger transactions for
// the account and advances its running balance row by row, in processing
// order. A missing account fails the whole batch; everything past that point
// is per-row best effort.
func (s *Service) ImportTransactions(
	ctx context.Context,
	rows []*models.NormalizedRow,
	accountID string,
	actorID string,
) (*ImportSummary, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil || account == nil {
		s.logger.WithError(err).WithField("account_id", accountID).Error("Account lookup failed, aborting batch")
		return nil, errors.ImportError(errors.CodeAccountNotFound, accountID, err)
	}

	summary := &ImportSummary{TotalRows: len(rows)}

	s.logger.WithFields(logger.Fields{
		"account_id": accountID,
		"total_rows": summary.TotalRows,
	}).Info("Starting transaction import")

	for _, row := range rows {
		if !row.HasDate() {
			// No usable transaction date: the row is skipped, not counted,
			// and the batch continues.
			s.logger.WithField("row_index", row.RowIndex).Warn("Skipping row without a transaction date")
			continue
		}

		tx := s.buildTransaction(row, accountID, actorID)

		// Balance moves before the next row is considered; accumulation is
		// processing-order dependent, not transaction-date dependent.
		account.CurrentBalance = account.CurrentBalance.Sub(row.Debit()).Add(row.Credit())

		if err := s.transactions.Save(ctx, tx); err != nil {
			persistErr := errors.ImportError(errors.CodeRowPersistenceFailure, accountID, err).
				WithContext("row_index", row.RowIndex)
			s.logger.WithError(persistErr).WithField("row_index", row.RowIndex).Error("Row persistence failed, continuing batch")
			continue
		}

		summary.ImportedRows++
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		return summary, errors.Wrap(err, errors.CategoryStorage, errors.CodeUnexpectedError,
			fmt.Sprintf("failed to persist updated balance for account %s", accountID))
	}

	s.logger.WithFields(logger.Fields{
		"account_id":    accountID,
		"total_rows":    summary.TotalRows,
		"imported_rows": summary.ImportedRows,
		"balance":       account.CurrentBalance.String(),
	}).Info("Transaction import completed")

	return summary, nil
}

// buildTransaction maps one normalized row onto a ledger transaction. The
// signed amount comes from whichever of debit/credit is populated; when both
// are non-zero the debit wins, preserved as documented source behavior
// rather than silently corrected.
func (s *Service) buildTransaction(row *models.NormalizedRow, accountID, actorID string) *models.LedgerTransaction {
	amount := row.Credit()
	if !row.Debit().IsZero() {
		amount = row.Debit().Neg()
	}

	return &models.LedgerTransaction{
		AccountID:       accountID,
		Amount:          amount,
		Description:     row.Description(),
		Reference:       row.Reference(),
		TransactionDate: *row.Date,
		EntryType:       models.EntryTypeImported,
		CreatedBy:       actorID,
		CreatedDate:     s.clock(),
	}
}
