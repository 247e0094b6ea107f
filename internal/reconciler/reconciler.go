// Package reconciler validates that the ledger's computed balance matches a
// bank-asserted closing balance at user-asserted checkpoints.
//
// Each reconciliation attempt covers the open period since the account's
// previous checkpoint. Matched and mismatched attempts both persist a
// checkpoint row so the history shows every attempt; a window that is not
// fully classified yet terminates as NotReady and persists nothing.
package reconciler

import (
	"context"
	"time"

	"ledger-import-service/internal/importer"
	"ledger-import-service/internal/models"
	"ledger-import-service/pkg/errors"
	"ledger-import-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// CheckpointStore persists successive reconcile checkpoints per account,
// ordered by checkpoint date
type CheckpointStore interface {
	LatestBefore(ctx context.Context, accountID string, date time.Time) (*models.ReconcileCheckpoint, error)
	Latest(ctx context.Context, accountID string) (*models.ReconcileCheckpoint, error)
	Save(ctx context.Context, checkpoint *models.ReconcileCheckpoint) error
}

// ClassificationOracle is the readiness predicate: reconciliation must not
// proceed on a window whose transactions are not all classified
type ClassificationOracle interface {
	IsWindowFullyClassified(ctx context.Context, transactions []*models.LedgerTransaction) (bool, error)
}

// Status is the terminal state of a reconciliation attempt
type Status string

const (
	StatusMatched    Status = "MATCHED"
	StatusMismatched Status = "MISMATCHED"
	StatusNotReady   Status = "NOT_READY"
)

// Result reports the outcome of one reconciliation attempt. Delta is only
// meaningful when the status is Mismatched.
type Result struct {
	Status          Status          `json:"status"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	AssertedBalance decimal.Decimal `json:"asserted_balance"`
	Delta           decimal.Decimal `json:"delta"`
	WindowSize      int             `json:"window_size"`
	CheckpointDate  time.Time       `json:"checkpoint_date"`
}

// Service is the reconciliation engine
type Service struct {
	accounts     importer.AccountStore
	transactions importer.TransactionStore
	checkpoints  CheckpointStore
	oracle       ClassificationOracle
	clock        func() time.Time
	logger       logger.Logger
}

// NewService creates a reconciliation engine over the given collaborators
func NewService(
	accounts importer.AccountStore,
	transactions importer.TransactionStore,
	checkpoints CheckpointStore,
	oracle ClassificationOracle,
) *Service {
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		checkpoints:  checkpoints,
		oracle:       oracle,
		clock:        time.Now,
		logger:       logger.GetGlobalLogger().WithComponent("reconciler"),
	}
}

// WithClock overrides the audit timestamp source, used by tests
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Reconcile validates the asserted closing balance for the account at the
// checkpoint date. Checkpoints must be created in strictly increasing date
// order; a requested date at or before the latest existing checkpoint is
// rejected before any computation.
func (s *Service) Reconcile(
	ctx context.Context,
	accountID string,
	checkpointDate time.Time,
	assertedClosingBalance decimal.Decimal,
) (*Result, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil || account == nil {
		return nil, errors.ImportError(errors.CodeAccountNotFound, accountID, err)
	}

	latest, err := s.checkpoints.Latest(ctx, accountID)
	if err != nil {
		return nil, errors.ReconciliationError(errors.CodeWindowQueryFailed, accountID, err)
	}
	if latest != nil && !checkpointDate.After(latest.CheckpointDate) {
		return nil, errors.ReconciliationError(errors.CodeInvalidCheckpointOrder, accountID, nil).
			WithContext("requested_date", checkpointDate.Format("2006-01-02")).
			WithContext("latest_date", latest.CheckpointDate.Format("2006-01-02"))
	}

	prior, err := s.checkpoints.LatestBefore(ctx, accountID, checkpointDate)
	if err != nil {
		return nil, errors.ReconciliationError(errors.CodeWindowQueryFailed, accountID, err)
	}

	// Window opens at the prior checkpoint, or at account inception for the
	// first checkpoint.
	var fromExclusive time.Time
	openingBalance := account.OpeningBalance
	if prior != nil {
		fromExclusive = prior.CheckpointDate
		openingBalance = prior.AssertedClosingBalance
	}

	window, err := s.transactions.FindInWindow(ctx, accountID, fromExclusive, checkpointDate)
	if err != nil {
		return nil, errors.ReconciliationError(errors.CodeWindowQueryFailed, accountID, err)
	}

	ready, err := s.oracle.IsWindowFullyClassified(ctx, window)
	if err != nil {
		return nil, errors.ReconciliationError(errors.CodeWindowQueryFailed, accountID, err)
	}
	if !ready {
		s.logger.WithFields(logger.Fields{
			"account_id":  accountID,
			"window_size": len(window),
		}).Info("Reconciliation window not fully classified, nothing persisted")

		return &Result{
			Status:          StatusNotReady,
			AssertedBalance: assertedClosingBalance,
			WindowSize:      len(window),
			CheckpointDate:  checkpointDate,
		}, nil
	}

	computed := openingBalance.Add(models.SumSigned(window))

	result := &Result{
		ComputedBalance: computed,
		AssertedBalance: assertedClosingBalance,
		WindowSize:      len(window),
		CheckpointDate:  checkpointDate,
	}

	checkpointStatus := models.CheckpointMatched
	if models.BalancesEqual(computed, assertedClosingBalance) {
		result.Status = StatusMatched
		result.Delta = decimal.Zero
	} else {
		result.Status = StatusMismatched
		result.Delta = assertedClosingBalance.Sub(computed)
		checkpointStatus = models.CheckpointMismatched
	}

	// Mismatches are recorded, not discarded: the checkpoint history must
	// show every attempt.
	checkpoint := &models.ReconcileCheckpoint{
		AccountID:              accountID,
		CheckpointDate:         checkpointDate,
		AssertedClosingBalance: assertedClosingBalance,
		ComputedLedgerBalance:  computed,
		Status:                 checkpointStatus,
		CreatedDate:            s.clock(),
	}
	if err := s.checkpoints.Save(ctx, checkpoint); err != nil {
		return nil, errors.ReconciliationError(errors.CodeCheckpointSaveFailed, accountID, err)
	}

	s.logger.WithFields(logger.Fields{
		"account_id":  accountID,
		"status":      string(result.Status),
		"computed":    computed.String(),
		"asserted":    assertedClosingBalance.String(),
		"delta":       result.Delta.String(),
		"window_size": len(window),
	}).Info("Reconciliation attempt recorded")

	return result, nil
}
