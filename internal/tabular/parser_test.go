package tabular

import (
	"fmt"
	"strings"
	"testing"

	"ledger-import-service/internal/models"
	"ledger-import-service/pkg/errors"
)

func testMapping(t *testing.T, dateFormatID string) *models.FieldMapping {
	t.Helper()
	mapping, err := models.NewFieldMapping(map[models.SemanticField]int{
		models.FieldTransactionDate: 0,
		models.FieldDescription:     1,
		models.FieldDebitAmount:     2,
		models.FieldCreditAmount:    3,
	}, dateFormatID)
	if err != nil {
		t.Fatalf("NewFieldMapping() error = %v", err)
	}
	return mapping
}

func parseCSV(t *testing.T, content string, mapping *models.FieldMapping) ([]*models.NormalizedRow, []models.CellError) {
	t.Helper()
	parser := NewParser(nil)
	rows, cellErrors, err := parser.Parse(NewDelimitedTextSource(strings.NewReader(content)), mapping)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return rows, cellErrors
}

func TestParse_WellFormedRow(t *testing.T) {
	content := "Date,Desc,Debit,Credit\n" +
		`"14/02/2024","Coffee","12.50",""` + "\n"

	rows, cellErrors := parseCSV(t, content, testMapping(t, "dd/MM/yyyy"))

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if len(cellErrors) != 0 {
		t.Fatalf("expected 0 cell errors, got %d: %v", len(cellErrors), cellErrors)
	}

	row := rows[0]
	if !row.HasDate() {
		t.Fatal("expected the date to be normalized")
	}
	if got := row.Date.Format("2006-01-02"); got != "2024-02-14" {
		t.Errorf("date = %s, want 2024-02-14", got)
	}
	if row.Description() != "Coffee" {
		t.Errorf("description = %q, want Coffee", row.Description())
	}
	if row.Debit().String() != "12.5" {
		t.Errorf("debit = %s, want 12.5", row.Debit().String())
	}
	if !row.Credit().IsZero() {
		t.Errorf("credit = %s, want 0", row.Credit().String())
	}
	if row.RowIndex != 1 {
		t.Errorf("row index = %d, want 1 (header is row 0)", row.RowIndex)
	}
}

func TestParse_HeaderIsDiscarded(t *testing.T) {
	content := "Date,Desc,Debit,Credit\n"

	rows, cellErrors := parseCSV(t, content, testMapping(t, "dd/MM/yyyy"))

	if len(rows) != 0 {
		t.Errorf("expected header-only file to yield 0 rows, got %d", len(rows))
	}
	if len(cellErrors) != 0 {
		t.Errorf("expected 0 cell errors, got %d", len(cellErrors))
	}
}

func TestParse_EmptySource(t *testing.T) {
	rows, cellErrors := parseCSV(t, "", testMapping(t, "dd/MM/yyyy"))

	if len(rows) != 0 || len(cellErrors) != 0 {
		t.Errorf("empty source should yield nothing, got %d rows, %d errors", len(rows), len(cellErrors))
	}
}

func TestParse_QuotedCommaDoesNotSplit(t *testing.T) {
	content := "Date,Desc,Debit,Credit\n" +
		`14/02/2024,"Coffee, beans and filters",12.50,` + "\n"

	rows, cellErrors := parseCSV(t, content, testMapping(t, "dd/MM/yyyy"))

	if len(rows) != 1 || len(cellErrors) != 0 {
		t.Fatalf("expected 1 clean row, got %d rows, %d errors", len(rows), len(cellErrors))
	}
	if rows[0].Description() != "Coffee, beans and filters" {
		t.Errorf("description = %q, quoted comma was split", rows[0].Description())
	}
}

func TestParse_AmountNormalization(t *testing.T) {
	tests := []struct {
		name       string
		debitCell  string
		wantDebit  string
		wantErrors int
	}{
		{"Thousands separator", `"1,234.50"`, "1234.5", 0},
		{"Empty amount", "", "0", 0},
		{"Unparsable amount degrades silently", "n/a", "0", 0},
		{"Negative amount", "-45.00", "-45", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := fmt.Sprintf("Date,Desc,Debit,Credit\n14/02/2024,Coffee,%s,\n", tt.debitCell)

			rows, cellErrors := parseCSV(t, content, testMapping(t, "dd/MM/yyyy"))

			if len(rows) != 1 {
				t.Fatalf("expected 1 row, got %d", len(rows))
			}
			if got := rows[0].Debit().String(); got != tt.wantDebit {
				t.Errorf("debit = %s, want %s", got, tt.wantDebit)
			}
			if len(cellErrors) != tt.wantErrors {
				t.Errorf("cell errors = %d, want %d", len(cellErrors), tt.wantErrors)
			}
		})
	}
}

func TestParse_BadDateRecordsErrorAndOmitsField(t *testing.T) {
	content := "Date,Desc,Debit,Credit\n" +
		"31/31/2024,Coffee,12.50,\n" +
		"15/02/2024,Tea,3.00,\n"

	rows, cellErrors := parseCSV(t, content, testMapping(t, "dd/MM/yyyy"))

	if len(rows) != 2 {
		t.Fatalf("expected both rows despite the bad date, got %d", len(rows))
	}
	if rows[0].HasDate() {
		t.Error("bad date should be omitted, not substituted")
	}
	if rows[0].Description() != "Coffee" {
		t.Error("bad date should not block descriptive fields")
	}
	if !rows[1].HasDate() {
		t.Error("subsequent rows should still parse")
	}

	if len(cellErrors) != 1 {
		t.Fatalf("expected 1 cell error, got %d", len(cellErrors))
	}
	cellErr := cellErrors[0]
	if cellErr.RowIndex != 1 || cellErr.ColumnIndex != 0 {
		t.Errorf("cell error at (%d,%d), want (1,0)", cellErr.RowIndex, cellErr.ColumnIndex)
	}
	if cellErr.Field != models.FieldTransactionDate {
		t.Errorf("cell error field = %s, want %s", cellErr.Field, models.FieldTransactionDate)
	}
}

func TestParse_RaggedRow(t *testing.T) {
	// Row has only date and description; debit, credit and reference are
	// missing entirely.
	mapping, err := models.NewFieldMapping(map[models.SemanticField]int{
		models.FieldTransactionDate: 0,
		models.FieldDescription:     1,
		models.FieldDebitAmount:     2,
		models.FieldCreditAmount:    3,
		models.FieldReference:       4,
	}, "dd/MM/yyyy")
	if err != nil {
		t.Fatalf("NewFieldMapping() error = %v", err)
	}

	content := "Date,Desc,Debit,Credit,Ref\n14/02/2024,Coffee\n"

	rows, cellErrors := parseCSV(t, content, mapping)

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if !row.Debit().IsZero() || !row.Credit().IsZero() {
		t.Error("missing amount cells should default to zero")
	}
	if row.Reference() != models.MissingFieldPlaceholder {
		t.Errorf("missing reference = %q, want %q", row.Reference(), models.MissingFieldPlaceholder)
	}

	// One cell error per missing non-amount field; missing amounts are not
	// errors.
	if len(cellErrors) != 1 {
		t.Fatalf("expected 1 cell error for the missing reference, got %d: %v", len(cellErrors), cellErrors)
	}
	if cellErrors[0].Field != models.FieldReference {
		t.Errorf("cell error field = %s, want %s", cellErrors[0].Field, models.FieldReference)
	}
	if cellErrors[0].ColumnIndex != 4 {
		t.Errorf("cell error column = %d, want 4", cellErrors[0].ColumnIndex)
	}
}

func TestParse_MultipleRowsAccumulate(t *testing.T) {
	content := "Date,Desc,Debit,Credit\n" +
		"01/03/2024,Rent,800.00,\n" +
		"02/03/2024,Salary,,\"2,500.00\"\n" +
		"03/03/2024,Groceries,54.20,\n"

	rows, cellErrors := parseCSV(t, content, testMapping(t, "dd/MM/yyyy"))

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if len(cellErrors) != 0 {
		t.Fatalf("expected 0 cell errors, got %d", len(cellErrors))
	}
	if rows[1].Credit().String() != "2500" {
		t.Errorf("credit = %s, want 2500", rows[1].Credit().String())
	}
	for i, row := range rows {
		if row.RowIndex != i+1 {
			t.Errorf("rows[%d].RowIndex = %d, want %d", i, row.RowIndex, i+1)
		}
	}
}

func TestParse_UnknownDateFormat(t *testing.T) {
	parser := NewParser(nil)
	mapping := testMapping(t, "QQ/WW/2024")

	_, _, err := parser.Parse(NewDelimitedTextSource(strings.NewReader("h\n")), mapping)
	if err == nil {
		t.Fatal("expected an error for an unknown date format identifier")
	}
	if !errors.HasCode(err, errors.CodeUnknownFormat) {
		t.Errorf("error code = %v, want %v", err, errors.CodeUnknownFormat)
	}
}

func TestParse_NilMapping(t *testing.T) {
	parser := NewParser(nil)
	_, _, err := parser.Parse(NewDelimitedTextSource(strings.NewReader("h\n")), nil)
	if err == nil {
		t.Fatal("expected an error for a nil mapping")
	}
	if !errors.HasCode(err, errors.CodeInvalidMapping) {
		t.Errorf("error code = %v, want %v", err, errors.CodeInvalidMapping)
	}
}

// failingSource simulates a stream that breaks mid-read.
type failingSource struct {
	rows  [][]string
	index int
}

func (f *failingSource) Next() ([]string, error) {
	if f.index < len(f.rows) {
		row := f.rows[f.index]
		f.index++
		return row, nil
	}
	return nil, errors.StreamError(errors.CodeStreamUnreadable, "test", fmt.Errorf("read: connection reset"))
}

func (f *failingSource) Close() error { return nil }

func TestParse_StreamFailureYieldsNoRows(t *testing.T) {
	source := &failingSource{rows: [][]string{
		{"Date", "Desc", "Debit", "Credit"},
		{"14/02/2024", "Coffee", "12.50", ""},
	}}

	parser := NewParser(nil)
	rows, cellErrors, err := parser.Parse(source, testMapping(t, "dd/MM/yyyy"))

	if err == nil {
		t.Fatal("expected a stream-level error")
	}
	if !errors.HasCode(err, errors.CodeStreamUnreadable) {
		t.Errorf("error = %v, want stream_unreadable", err)
	}
	if rows != nil || cellErrors != nil {
		t.Error("a stream failure must yield no rows")
	}
}

func TestFormatTable_Resolve(t *testing.T) {
	table := NewFormatTable()

	tests := []struct {
		formatID string
		want     string
		wantErr  bool
	}{
		{"dd/MM/yyyy", "02/01/2006", false},
		{"MM/dd/yyyy", "01/02/2006", false},
		{"yyyy-MM-dd", "2006-01-02", false},
		{"", "2006-01-02", false},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.formatID, func(t *testing.T) {
			layout, err := table.Resolve(tt.formatID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%q) error = %v, wantErr %v", tt.formatID, err, tt.wantErr)
			}
			if layout != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.formatID, layout, tt.want)
			}
		})
	}
}

func TestFormatTable_Register(t *testing.T) {
	table := NewFormatTable()
	table.Register("yyyyMMdd", "20060102")

	layout, err := table.Resolve("yyyyMMdd")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if layout != "20060102" {
		t.Errorf("Resolve() = %q, want 20060102", layout)
	}
}

func TestDetectSourceKind(t *testing.T) {
	tests := []struct {
		path string
		want SourceKind
	}{
		{"statement.csv", SourceDelimited},
		{"statement.txt", SourceDelimited},
		{"statement.XLSX", SourceSpreadsheet},
		{"statement.xlsm", SourceSpreadsheet},
	}

	for _, tt := range tests {
		if got := DetectSourceKind(tt.path); got != tt.want {
			t.Errorf("DetectSourceKind(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
