// Package tabular turns heterogeneous bank statement exports into normalized
// transaction rows.
//
// Two source shapes are supported behind the same row-iteration contract:
//   - DelimitedTextSource: comma-delimited text with quote-aware splitting
//   - SpreadsheetSource: XLSX workbooks
//
// Normalization is shared by both sources and parameterized only by how raw
// cells are obtained. Parsing is best-effort: bad cells produce CellError
// markers and never abort the stream, so callers always receive every row
// that could be read.
package tabular

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ledger-import-service/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// TabularSource yields one raw row of cells at a time. Next returns io.EOF
// when the source is exhausted; any other error means the stream itself is
// unreadable.
type TabularSource interface {
	Next() ([]string, error)
	Close() error
}

// DelimitedTextSource reads comma-delimited text row by row. Commas inside
// quoted spans do not split the row.
type DelimitedTextSource struct {
	reader *csv.Reader
	closer io.Closer
}

// NewDelimitedTextSource creates a source over a delimited text stream
func NewDelimitedTextSource(r io.Reader) *DelimitedTextSource {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = false

	source := &DelimitedTextSource{reader: reader}
	if closer, ok := r.(io.Closer); ok {
		source.closer = closer
	}
	return source
}

// Next returns the next row of cells, or io.EOF at end of stream
func (s *DelimitedTextSource) Next() ([]string, error) {
	record, err := s.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.StreamError(errors.CodeStreamUnreadable, "delimited text", err)
	}
	return record, nil
}

// Close closes the underlying stream when it supports closing
func (s *DelimitedTextSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// SpreadsheetSource reads rows from the first (or a named) sheet of an XLSX
// workbook. Spreadsheet rows arrive already cell-structured, so no splitting
// happens here.
type SpreadsheetSource struct {
	file *excelize.File
	rows *excelize.Rows
}

// NewSpreadsheetSource opens a workbook from a byte stream. An empty sheet
// name selects the workbook's first sheet.
func NewSpreadsheetSource(r io.Reader, sheetName string) (*SpreadsheetSource, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.StreamError(errors.CodeStreamUnreadable, "spreadsheet", err)
	}

	if sheetName == "" {
		sheets := file.GetSheetList()
		if len(sheets) == 0 {
			file.Close()
			return nil, errors.StreamError(errors.CodeSheetNotFound, "spreadsheet", nil)
		}
		sheetName = sheets[0]
	}

	rows, err := file.Rows(sheetName)
	if err != nil {
		file.Close()
		return nil, errors.StreamError(errors.CodeSheetNotFound, sheetName, err)
	}

	return &SpreadsheetSource{file: file, rows: rows}, nil
}

// Next returns the next row of cells, or io.EOF when the sheet is exhausted
func (s *SpreadsheetSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, errors.StreamError(errors.CodeStreamUnreadable, "spreadsheet", err)
		}
		return nil, io.EOF
	}

	cells, err := s.rows.Columns()
	if err != nil {
		return nil, errors.StreamError(errors.CodeStreamUnreadable, "spreadsheet", err)
	}
	return cells, nil
}

// Close releases the workbook resources
func (s *SpreadsheetSource) Close() error {
	if err := s.rows.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// SourceKind selects a TabularSource implementation
type SourceKind string

const (
	SourceDelimited   SourceKind = "csv"
	SourceSpreadsheet SourceKind = "xlsx"
)

// DetectSourceKind guesses the source kind from a file extension
func DetectSourceKind(path string) SourceKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		return SourceSpreadsheet
	default:
		return SourceDelimited
	}
}

// OpenFileSource opens a file as a TabularSource of the given kind. An empty
// kind falls back to extension detection.
func OpenFileSource(path string, kind SourceKind) (TabularSource, error) {
	if kind == "" {
		kind = DetectSourceKind(path)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.StreamError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.StreamError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.StreamError(errors.CodeStreamUnreadable, path, err)
	}

	switch kind {
	case SourceSpreadsheet:
		// excelize reads the whole stream up front, so the file handle can
		// be released as soon as the workbook is open.
		source, err := NewSpreadsheetSource(file, "")
		file.Close()
		if err != nil {
			return nil, err
		}
		return source, nil
	default:
		return NewDelimitedTextSource(file), nil
	}
}
