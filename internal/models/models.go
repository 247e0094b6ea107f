package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SemanticField identifies the meaning of a mapped source column
type SemanticField string

const (
	FieldTransactionDate SemanticField = "TRANSACTION_DATE"
	FieldDescription     SemanticField = "DESCRIPTION"
	FieldDebitAmount     SemanticField = "DEBIT_AMOUNT"
	FieldCreditAmount    SemanticField = "CREDIT_AMOUNT"
	FieldReference       SemanticField = "REFERENCE"
)

// String returns the string representation of SemanticField
func (f SemanticField) String() string {
	return string(f)
}

// IsValid checks if the semantic field is one of the known fields
func (f SemanticField) IsValid() bool {
	switch f {
	case FieldTransactionDate, FieldDescription, FieldDebitAmount, FieldCreditAmount, FieldReference:
		return true
	default:
		return false
	}
}

// IsAmount returns true for the debit and credit amount fields, which follow
// the degrade-to-zero normalization rules instead of the error-and-omit rules
func (f SemanticField) IsAmount() bool {
	return f == FieldDebitAmount || f == FieldCreditAmount
}

// ParseSemanticField parses a semantic field from a string, accepting common aliases
func ParseSemanticField(s string) (SemanticField, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRANSACTION_DATE", "DATE", "TRANSACTION DATE":
		return FieldTransactionDate, nil
	case "DESCRIPTION", "DESC", "NARRATIVE":
		return FieldDescription, nil
	case "DEBIT_AMOUNT", "DEBIT", "DR":
		return FieldDebitAmount, nil
	case "CREDIT_AMOUNT", "CREDIT", "CR":
		return FieldCreditAmount, nil
	case "REFERENCE", "REF":
		return FieldReference, nil
	default:
		return "", fmt.Errorf("unknown semantic field '%s'", s)
	}
}

// FieldMapping declares which semantic field lives in which zero-based column
// of a source file, plus an optional date-format identifier resolved by the
// parser. It is immutable once constructed for a given import run.
type FieldMapping struct {
	columns      map[SemanticField]int
	dateFormatID string
}

// NewFieldMapping creates a validated FieldMapping. Column indices need not
// be contiguous or cover every source column; fields absent from the mapping
// are simply ignored during parsing.
func NewFieldMapping(columns map[SemanticField]int, dateFormatID string) (*FieldMapping, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("field mapping cannot be empty")
	}

	copied := make(map[SemanticField]int, len(columns))
	for field, index := range columns {
		if !field.IsValid() {
			return nil, fmt.Errorf("unknown semantic field '%s' in mapping", field)
		}
		if index < 0 {
			return nil, fmt.Errorf("column index for field '%s' cannot be negative, got %d", field, index)
		}
		copied[field] = index
	}

	return &FieldMapping{
		columns:      copied,
		dateFormatID: strings.TrimSpace(dateFormatID),
	}, nil
}

// ColumnIndex returns the mapped column index for a field
func (m *FieldMapping) ColumnIndex(field SemanticField) (int, bool) {
	index, ok := m.columns[field]
	return index, ok
}

// Fields returns the mapped semantic fields in column order, so per-row
// processing is deterministic
func (m *FieldMapping) Fields() []SemanticField {
	fields := make([]SemanticField, 0, len(m.columns))
	for field := range m.columns {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool {
		if m.columns[fields[i]] == m.columns[fields[j]] {
			return fields[i] < fields[j]
		}
		return m.columns[fields[i]] < m.columns[fields[j]]
	})
	return fields
}

// DateFormatID returns the optional date-format identifier
func (m *FieldMapping) DateFormatID() string {
	return m.dateFormatID
}

// Len returns the number of mapped fields
func (m *FieldMapping) Len() int {
	return len(m.columns)
}

// MissingFieldPlaceholder is substituted for non-amount fields that a ragged
// row could not supply.
const MissingFieldPlaceholder = "-"

// NormalizedRow is the typed per-row output of the tabular parser. RowIndex
// is zero-based and counts the header row, so the first data row has index 1.
type NormalizedRow struct {
	RowIndex int
	Date     *time.Time
	Amounts  map[SemanticField]decimal.Decimal
	Text     map[SemanticField]string
}

// NewNormalizedRow creates an empty normalized row for the given source row index
func NewNormalizedRow(rowIndex int) *NormalizedRow {
	return &NormalizedRow{
		RowIndex: rowIndex,
		Amounts:  make(map[SemanticField]decimal.Decimal),
		Text:     make(map[SemanticField]string),
	}
}

// HasDate reports whether the transaction date survived normalization
func (r *NormalizedRow) HasDate() bool {
	return r.Date != nil
}

// Amount returns the normalized amount for a field, defaulting to zero
func (r *NormalizedRow) Amount(field SemanticField) decimal.Decimal {
	if amount, ok := r.Amounts[field]; ok {
		return amount
	}
	return decimal.Zero
}

// Debit returns the normalized debit amount
func (r *NormalizedRow) Debit() decimal.Decimal {
	return r.Amount(FieldDebitAmount)
}

// Credit returns the normalized credit amount
func (r *NormalizedRow) Credit() decimal.Decimal {
	return r.Amount(FieldCreditAmount)
}

// Description returns the normalized description text
func (r *NormalizedRow) Description() string {
	return r.Text[FieldDescription]
}

// Reference returns the normalized reference text
func (r *NormalizedRow) Reference() string {
	return r.Text[FieldReference]
}

// String returns a string representation of the NormalizedRow
func (r *NormalizedRow) String() string {
	date := "<none>"
	if r.Date != nil {
		date = r.Date.Format("2006-01-02")
	}
	return fmt.Sprintf("NormalizedRow{Row: %d, Date: %s, Debit: %s, Credit: %s, Description: %q}",
		r.RowIndex, date, r.Debit().String(), r.Credit().String(), r.Description())
}

// CellError records a cell that failed normalization. Errors never abort
// parsing; they are collected alongside the successful rows.
type CellError struct {
	RowIndex    int           `json:"row_index"`
	ColumnIndex int           `json:"column_index"`
	Field       SemanticField `json:"field"`
	Message     string        `json:"message"`
}

// Error implements the error interface
func (e CellError) Error() string {
	return fmt.Sprintf("cell error at row %d, column %d (%s): %s",
		e.RowIndex, e.ColumnIndex, e.Field, e.Message)
}

// SpreadsheetLocation renders the cell position as a human-visible
// spreadsheet coordinate such as "C3". Row and column indices are zero-based
// and already include the header offset, so only the A1 translation happens
// here.
func (e CellError) SpreadsheetLocation() string {
	return fmt.Sprintf("%s%d", columnLetters(e.ColumnIndex), e.RowIndex+1)
}

func columnLetters(index int) string {
	letters := ""
	for index >= 0 {
		letters = string(rune('A'+index%26)) + letters
		index = index/26 - 1
	}
	return letters
}

// EntryType tags how a ledger transaction entered the system
type EntryType string

const (
	EntryTypeImported   EntryType = "imported"
	EntryTypeManual     EntryType = "manual"
	EntryTypeAdjustment EntryType = "adjustment"
)

// LedgerTransaction is a persisted, signed movement against a bank account's
// balance. Transactions are soft-deleted, never removed.
type LedgerTransaction struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Reference       string          `json:"reference,omitempty"`
	TransactionDate time.Time       `json:"transaction_date"`
	EntryType       EntryType       `json:"entry_type"`
	Category        string          `json:"category,omitempty"`
	Deleted         bool            `json:"deleted"`
	CreatedBy       string          `json:"created_by"`
	CreatedDate     time.Time       `json:"created_date"`
}

// Validate performs basic validation on the LedgerTransaction
func (t *LedgerTransaction) Validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return fmt.Errorf("transaction account id cannot be empty")
	}
	if t.TransactionDate.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}
	return nil
}

// IsDebit returns true if the transaction reduces the account balance
func (t *LedgerTransaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// IsCredit returns true if the transaction increases the account balance
func (t *LedgerTransaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// IsClassified reports whether a category has been assigned, which the
// reconciliation readiness check requires for every transaction in a window
func (t *LedgerTransaction) IsClassified() bool {
	return strings.TrimSpace(t.Category) != ""
}

// String returns a string representation of the LedgerTransaction
func (t *LedgerTransaction) String() string {
	return fmt.Sprintf("LedgerTransaction{ID: %s, Account: %s, Amount: %s, Date: %s, Description: %q}",
		t.ID, t.AccountID, t.Amount.String(), t.TransactionDate.Format("2006-01-02"), t.Description)
}

// BankAccount holds the ledger-side running balance that imports advance and
// reconciliation validates
type BankAccount struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Currency       string          `json:"currency,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// Validate performs basic validation on the BankAccount
func (a *BankAccount) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("account id cannot be empty")
	}
	return nil
}

// String returns a string representation of the BankAccount
func (a *BankAccount) String() string {
	return fmt.Sprintf("BankAccount{ID: %s, Name: %q, Balance: %s}",
		a.ID, a.Name, a.CurrentBalance.String())
}

// CheckpointStatus is the persisted outcome of a reconciliation attempt
type CheckpointStatus string

const (
	CheckpointMatched    CheckpointStatus = "MATCHED"
	CheckpointMismatched CheckpointStatus = "MISMATCHED"
)

// ReconcileCheckpoint is a dated, user-asserted closing balance recorded per
// reconciliation attempt. Checkpoints for an account are totally ordered by
// CheckpointDate.
type ReconcileCheckpoint struct {
	ID                     string           `json:"id"`
	AccountID              string           `json:"account_id"`
	CheckpointDate         time.Time        `json:"checkpoint_date"`
	AssertedClosingBalance decimal.Decimal  `json:"asserted_closing_balance"`
	ComputedLedgerBalance  decimal.Decimal  `json:"computed_ledger_balance"`
	Status                 CheckpointStatus `json:"status"`
	CreatedDate            time.Time        `json:"created_date"`
}

// String returns a string representation of the ReconcileCheckpoint
func (c *ReconcileCheckpoint) String() string {
	return fmt.Sprintf("ReconcileCheckpoint{Account: %s, Date: %s, Asserted: %s, Computed: %s, Status: %s}",
		c.AccountID, c.CheckpointDate.Format("2006-01-02"),
		c.AssertedClosingBalance.String(), c.ComputedLedgerBalance.String(), c.Status)
}

// Utility functions shared by the parser, importer and reconciler

// NormalizeAmount coerces raw amount cell text into a decimal. Amount cells
// degrade to zero rather than failing the row: empty text, thousands
// separators and surrounding quote characters are all tolerated, and
// anything still unparsable yields zero.
func NormalizeAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SumSigned returns the signed sum of the transactions' amounts
func SumSigned(transactions []*LedgerTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		total = total.Add(tx.Amount)
	}
	return total
}

// BalancesEqual compares two balances at currency precision (two decimal
// places), absorbing representation noise below half a cent
func BalancesEqual(a, b decimal.Decimal) bool {
	return a.Round(2).Equal(b.Round(2))
}
