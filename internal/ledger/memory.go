// Package ledger provides in-memory reference implementations of the store
// interfaces the importer and reconciler depend on. They back the CLI and
// the test suite; a database-backed deployment replaces them behind the same
// interfaces.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"ledger-import-service/internal/models"
	"ledger-import-service/pkg/errors"

	"github.com/google/uuid"
)

// MemoryAccountStore is a mutex-guarded in-memory AccountStore
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.BankAccount
}

// NewMemoryAccountStore creates an empty account store
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]*models.BankAccount)}
}

// Create registers a new account, rejecting duplicate identifiers
func (s *MemoryAccountStore) Create(_ context.Context, account *models.BankAccount) error {
	if err := account.Validate(); err != nil {
		return errors.StorageError(errors.CodeInvalidConfig, "account", account.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return errors.StorageError(errors.CodeDuplicateAccount, "account", account.ID, nil)
	}

	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

// Get returns the account with the given id
func (s *MemoryAccountStore) Get(_ context.Context, accountID string) (*models.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, errors.StorageError(errors.CodeNotFound, "account", accountID, nil)
	}

	copied := *account
	return &copied, nil
}

// Save persists the account state
func (s *MemoryAccountStore) Save(_ context.Context, account *models.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

// MemoryTransactionStore is a mutex-guarded in-memory TransactionStore
type MemoryTransactionStore struct {
	mu           sync.RWMutex
	transactions []*models.LedgerTransaction
}

// NewMemoryTransactionStore creates an empty transaction store
func NewMemoryTransactionStore() *MemoryTransactionStore {
	return &MemoryTransactionStore{}
}

// Save persists a transaction, assigning an identity when it has none
func (s *MemoryTransactionStore) Save(_ context.Context, tx *models.LedgerTransaction) error {
	if err := tx.Validate(); err != nil {
		return errors.StorageError(errors.CodeInvalidConfig, "transaction", tx.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	copied := *tx
	s.transactions = append(s.transactions, &copied)
	return nil
}

// FindInWindow returns the account's non-deleted transactions with dates in
// (fromExclusive, toInclusive], ordered by transaction date
func (s *MemoryTransactionStore) FindInWindow(_ context.Context, accountID string, fromExclusive, toInclusive time.Time) ([]*models.LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.LedgerTransaction
	for _, tx := range s.transactions {
		if tx.AccountID != accountID || tx.Deleted {
			continue
		}
		if tx.TransactionDate.After(fromExclusive) && !tx.TransactionDate.After(toInclusive) {
			copied := *tx
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TransactionDate.Before(result[j].TransactionDate)
	})
	return result, nil
}

// All returns a copy of every stored transaction, used by reporting
func (s *MemoryTransactionStore) All(_ context.Context) ([]*models.LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.LedgerTransaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		copied := *tx
		result = append(result, &copied)
	}
	return result, nil
}

// SoftDelete marks a transaction deleted without removing it
func (s *MemoryTransactionStore) SoftDelete(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions {
		if tx.ID == transactionID {
			tx.Deleted = true
			return nil
		}
	}
	return errors.StorageError(errors.CodeNotFound, "transaction", transactionID, nil)
}

// MemoryCheckpointStore is a mutex-guarded in-memory CheckpointStore
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints []*models.ReconcileCheckpoint
}

// NewMemoryCheckpointStore creates an empty checkpoint store
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{}
}

// LatestBefore returns the account's most recent checkpoint dated strictly
// before the given date, or nil when none exists
func (s *MemoryCheckpointStore) LatestBefore(_ context.Context, accountID string, date time.Time) (*models.ReconcileCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.ReconcileCheckpoint
	for _, cp := range s.checkpoints {
		if cp.AccountID != accountID || !cp.CheckpointDate.Before(date) {
			continue
		}
		if latest == nil || cp.CheckpointDate.After(latest.CheckpointDate) {
			latest = cp
		}
	}

	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

// Latest returns the account's most recent checkpoint, or nil when none exists
func (s *MemoryCheckpointStore) Latest(_ context.Context, accountID string) (*models.ReconcileCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.ReconcileCheckpoint
	for _, cp := range s.checkpoints {
		if cp.AccountID != accountID {
			continue
		}
		if latest == nil || cp.CheckpointDate.After(latest.CheckpointDate) {
			latest = cp
		}
	}

	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

// Save persists a checkpoint, assigning an identity when it has none
func (s *MemoryCheckpointStore) Save(_ context.Context, checkpoint *models.ReconcileCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if checkpoint.ID == "" {
		checkpoint.ID = uuid.NewString()
	}

	copied := *checkpoint
	s.checkpoints = append(s.checkpoints, &copied)
	return nil
}

// CategoryOracle treats a window as ready when every transaction carries a
// category. An importing CLI run that never classifies can swap in
// AlwaysClassified instead.
type CategoryOracle struct{}

// IsWindowFullyClassified reports whether every transaction has a category
func (CategoryOracle) IsWindowFullyClassified(_ context.Context, transactions []*models.LedgerTransaction) (bool, error) {
	for _, tx := range transactions {
		if !tx.IsClassified() {
			return false, nil
		}
	}
	return true, nil
}

// AlwaysClassified is a ClassificationOracle that never blocks reconciliation
type AlwaysClassified struct{}

// IsWindowFullyClassified always reports readiness
func (AlwaysClassified) IsWindowFullyClassified(_ context.Context, _ []*models.LedgerTransaction) (bool, error) {
	return true, nil
}
