package importer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ledger-import-service/internal/models"
	"ledger-import-service/pkg/errors"

	"github.com/shopspring/decimal"
)

type fakeAccountStore struct {
	accounts map[string]*models.BankAccount
	saves    int
}

func newFakeAccountStore(accounts ...*models.BankAccount) *fakeAccountStore {
	store := &fakeAccountStore{accounts: make(map[string]*models.BankAccount)}
	for _, account := range accounts {
		store.accounts[account.ID] = account
	}
	return store
}

func (f *fakeAccountStore) Get(_ context.Context, accountID string) (*models.BankAccount, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("no such account %s", accountID)
	}
	return account, nil
}

func (f *fakeAccountStore) Save(_ context.Context, account *models.BankAccount) error {
	f.accounts[account.ID] = account
	f.saves++
	return nil
}

type fakeTransactionStore struct {
	saved       []*models.LedgerTransaction
	failOnCalls map[int]bool // 1-based save call numbers that fail
	calls       int
}

func (f *fakeTransactionStore) Save(_ context.Context, tx *models.LedgerTransaction) error {
	f.calls++
	if f.failOnCalls[f.calls] {
		return fmt.Errorf("simulated persistence failure on call %d", f.calls)
	}
	f.saved = append(f.saved, tx)
	return nil
}

func (f *fakeTransactionStore) FindInWindow(_ context.Context, accountID string, fromExclusive, toInclusive time.Time) ([]*models.LedgerTransaction, error) {
	var result []*models.LedgerTransaction
	for _, tx := range f.saved {
		if tx.AccountID != accountID || tx.Deleted {
			continue
		}
		if tx.TransactionDate.After(fromExclusive) && !tx.TransactionDate.After(toInclusive) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}

func makeRow(t *testing.T, rowIndex int, date string, description, debit, credit string) *models.NormalizedRow {
	t.Helper()
	row := models.NewNormalizedRow(rowIndex)
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			t.Fatalf("invalid date %q: %v", date, err)
		}
		row.Date = &parsed
	}
	row.Text[models.FieldDescription] = description
	row.Amounts[models.FieldDebitAmount] = models.NormalizeAmount(debit)
	row.Amounts[models.FieldCreditAmount] = models.NormalizeAmount(credit)
	return row
}

func TestImportTransactions_HappyPath(t *testing.T) {
	account := &models.BankAccount{ID: "acct-1", CurrentBalance: dec(t, "1000.00")}
	accounts := newFakeAccountStore(account)
	transactions := &fakeTransactionStore{}

	service := NewService(accounts, transactions)

	rows := []*models.NormalizedRow{
		makeRow(t, 1, "2024-02-14", "Coffee", "12.50", ""),
		makeRow(t, 2, "2024-02-15", "Salary", "", "2500.00"),
	}

	summary, err := service.ImportTransactions(context.Background(), rows, "acct-1", "user-1")
	if err != nil {
		t.Fatalf("ImportTransactions() error = %v", err)
	}

	if summary.TotalRows != 2 || summary.ImportedRows != 2 {
		t.Errorf("summary = %+v, want 2/2", summary)
	}

	// 1000 - 12.50 + 2500 = 3487.50
	if got := account.CurrentBalance.String(); got != "3487.5" {
		t.Errorf("balance = %s, want 3487.5", got)
	}
	if accounts.saves != 1 {
		t.Errorf("account saved %d times, want exactly 1 (after the loop)", accounts.saves)
	}

	if len(transactions.saved) != 2 {
		t.Fatalf("saved %d transactions, want 2", len(transactions.saved))
	}
	first := transactions.saved[0]
	if first.Amount.String() != "-12.5" {
		t.Errorf("debit transaction amount = %s, want -12.5", first.Amount.String())
	}
	if first.EntryType != models.EntryTypeImported {
		t.Errorf("entry type = %s, want %s", first.EntryType, models.EntryTypeImported)
	}
	if first.CreatedBy != "user-1" {
		t.Errorf("created by = %s, want user-1", first.CreatedBy)
	}
	if transactions.saved[1].Amount.String() != "2500" {
		t.Errorf("credit transaction amount = %s, want 2500", transactions.saved[1].Amount.String())
	}
}

func TestImportTransactions_AccountNotFoundIsFatal(t *testing.T) {
	service := NewService(newFakeAccountStore(), &fakeTransactionStore{})

	rows := []*models.NormalizedRow{makeRow(t, 1, "2024-02-14", "Coffee", "12.50", "")}

	summary, err := service.ImportTransactions(context.Background(), rows, "missing", "user-1")
	if err == nil {
		t.Fatal("expected an error for a missing account")
	}
	if !errors.HasCode(err, errors.CodeAccountNotFound) {
		t.Errorf("error = %v, want account_not_found", err)
	}
	if summary != nil {
		t.Error("no summary should be produced for a fatal batch error")
	}
}

func TestImportTransactions_RowWithoutDateIsSkipped(t *testing.T) {
	account := &models.BankAccount{ID: "acct-1", CurrentBalance: dec(t, "100.00")}
	service := NewService(newFakeAccountStore(account), &fakeTransactionStore{})

	rows := []*models.NormalizedRow{
		makeRow(t, 1, "", "No date", "50.00", ""),
		makeRow(t, 2, "2024-02-15", "Has date", "10.00", ""),
	}

	summary, err := service.ImportTransactions(context.Background(), rows, "acct-1", "user-1")
	if err != nil {
		t.Fatalf("ImportTransactions() error = %v", err)
	}

	if summary.TotalRows != 2 || summary.ImportedRows != 1 {
		t.Errorf("summary = %+v, want total 2, imported 1", summary)
	}
	// Skipped row must not touch the balance either.
	if got := account.CurrentBalance.String(); got != "90" {
		t.Errorf("balance = %s, want 90", got)
	}
}

func TestImportTransactions_RowPersistenceFailureDoesNotStopBatch(t *testing.T) {
	account := &models.BankAccount{ID: "acct-1", CurrentBalance: decimal.Zero}
	transactions := &fakeTransactionStore{failOnCalls: map[int]bool{7: true}}
	service := NewService(newFakeAccountStore(account), transactions)

	var rows []*models.NormalizedRow
	for i := 1; i <= 10; i++ {
		rows = append(rows, makeRow(t, i, fmt.Sprintf("2024-03-%02d", i), fmt.Sprintf("Row %d", i), "", "10.00"))
	}

	summary, err := service.ImportTransactions(context.Background(), rows, "acct-1", "user-1")
	if err != nil {
		t.Fatalf("ImportTransactions() error = %v", err)
	}

	if summary.TotalRows != 10 || summary.ImportedRows != 9 {
		t.Errorf("summary = %+v, want ImportSummary{TotalRows:10, ImportedRows:9}", summary)
	}
	if len(transactions.saved) != 9 {
		t.Errorf("saved %d transactions, want 9", len(transactions.saved))
	}
}

func TestImportTransactions_DebitTakesPrecedenceWhenBothPopulated(t *testing.T) {
	account := &models.BankAccount{ID: "acct-1", CurrentBalance: dec(t, "100.00")}
	transactions := &fakeTransactionStore{}
	service := NewService(newFakeAccountStore(account), transactions)

	rows := []*models.NormalizedRow{
		makeRow(t, 1, "2024-02-14", "Ambiguous", "30.00", "20.00"),
	}

	if _, err := service.ImportTransactions(context.Background(), rows, "acct-1", "user-1"); err != nil {
		t.Fatalf("ImportTransactions() error = %v", err)
	}

	// The recorded transaction carries the debit.
	if got := transactions.saved[0].Amount.String(); got != "-30" {
		t.Errorf("transaction amount = %s, want -30 (debit precedence)", got)
	}
	// The balance moves by both legs, preserved source behavior:
	// 100 - 30 + 20 = 90.
	if got := account.CurrentBalance.String(); got != "90" {
		t.Errorf("balance = %s, want 90", got)
	}
}

func TestImportTransactions_ReimportDuplicates(t *testing.T) {
	// Imports are deliberately non-idempotent: re-running the same batch
	// moves the balance again and duplicates the transactions.
	account := &models.BankAccount{ID: "acct-1", CurrentBalance: dec(t, "1000.00")}
	transactions := &fakeTransactionStore{}
	service := NewService(newFakeAccountStore(account), transactions)

	rows := []*models.NormalizedRow{
		makeRow(t, 1, "2024-02-14", "Coffee", "12.50", ""),
	}

	for i := 0; i < 2; i++ {
		if _, err := service.ImportTransactions(context.Background(), rows, "acct-1", "user-1"); err != nil {
			t.Fatalf("ImportTransactions() run %d error = %v", i+1, err)
		}
	}

	if got := account.CurrentBalance.String(); got != "975" {
		t.Errorf("balance after re-import = %s, want 975 (debited twice)", got)
	}
	if len(transactions.saved) != 2 {
		t.Errorf("saved %d transactions, want 2 duplicates", len(transactions.saved))
	}
}

func TestImportSummary_String(t *testing.T) {
	summary := &ImportSummary{TotalRows: 10, ImportedRows: 9}
	want := "Total Transactions To Import 10 Transactions Imported 9"
	if summary.String() != want {
		t.Errorf("String() = %q, want %q", summary.String(), want)
	}
}
