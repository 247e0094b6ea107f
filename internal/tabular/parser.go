package tabular

import (
	"io"
	"strings"
	"time"

	"ledger-import-service/internal/models"
	"ledger-import-service/pkg/errors"
	"ledger-import-service/pkg/logger"
)

// Parser applies a field mapping to a tabular source and emits one
// normalized row per data row plus per-cell error markers. The first source
// row is always treated as a header and discarded.
type Parser struct {
	resolver DateFormatResolver
	logger   logger.Logger
}

// NewParser creates a Parser. A nil resolver falls back to the standard
// format table.
func NewParser(resolver DateFormatResolver) *Parser {
	if resolver == nil {
		resolver = NewFormatTable()
	}
	return &Parser{
		resolver: resolver,
		logger:   logger.GetGlobalLogger().WithComponent("tabular_parser"),
	}
}

// Parse consumes the source row by row. Cell failures are recorded and never
// abort the stream; only an unreadable stream fails the whole parse, in
// which case no rows are returned. Row and column indices in the returned
// cell errors are zero-based and count the header row, so the first data row
// has index 1.
func (p *Parser) Parse(source TabularSource, mapping *models.FieldMapping) ([]*models.NormalizedRow, []models.CellError, error) {
	if mapping == nil || mapping.Len() == 0 {
		return nil, nil, errors.NormalizationError(errors.CodeInvalidMapping, "mapping", nil,
			nil).WithSuggestion("provide a field mapping with at least one column")
	}

	layout, err := p.resolver.Resolve(mapping.DateFormatID())
	if err != nil {
		return nil, nil, err
	}

	// Header row is discarded; its cells are never mapped.
	if _, err := source.Next(); err != nil {
		if err == io.EOF {
			p.logger.Debug("Source is empty, no rows to parse")
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var rows []*models.NormalizedRow
	var cellErrors []models.CellError

	rowIndex := 0
	for {
		cells, err := source.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			// Stream-level failure: report it and yield nothing, the
			// caller cannot trust a partially read source.
			p.logger.WithError(err).WithField("row_index", rowIndex+1).Error("Source stream became unreadable")
			return nil, nil, err
		}
		rowIndex++

		row := models.NewNormalizedRow(rowIndex)
		cellErrors = p.normalizeRow(row, cells, mapping, layout, cellErrors)
		rows = append(rows, row)
	}

	p.logger.WithFields(logger.Fields{
		"rows":        len(rows),
		"cell_errors": len(cellErrors),
	}).Info("Tabular parse completed")

	return rows, cellErrors, nil
}

// normalizeRow fills one NormalizedRow from raw cells, appending any cell
// errors encountered. Every mapped field receives a value: ragged rows
// default amounts to zero and other fields to the "-" placeholder.
func (p *Parser) normalizeRow(
	row *models.NormalizedRow,
	cells []string,
	mapping *models.FieldMapping,
	layout string,
	cellErrors []models.CellError,
) []models.CellError {
	for _, field := range mapping.Fields() {
		column, _ := mapping.ColumnIndex(field)

		if column >= len(cells) {
			// Ragged row. Amounts degrade silently to zero; anything else
			// is a genuine data-quality signal.
			if field.IsAmount() {
				row.Amounts[field] = models.NormalizeAmount("")
				continue
			}
			row.Text[field] = models.MissingFieldPlaceholder
			cellErrors = append(cellErrors, models.CellError{
				RowIndex:    row.RowIndex,
				ColumnIndex: column,
				Field:       field,
				Message:     "row has fewer cells than the field mapping expects",
			})
			continue
		}

		raw := cells[column]

		switch {
		case field == models.FieldTransactionDate:
			parsed, err := time.Parse(layout, strings.TrimSpace(raw))
			if err != nil {
				cellErrors = append(cellErrors, models.CellError{
					RowIndex:    row.RowIndex,
					ColumnIndex: column,
					Field:       field,
					Message:     "cannot parse date with configured format",
				})
				continue // field omitted, not substituted
			}
			row.Date = &parsed

		case field.IsAmount():
			row.Amounts[field] = models.NormalizeAmount(raw)

		default:
			row.Text[field] = strings.TrimSpace(raw)
		}
	}

	return cellErrors
}

// ParseFile opens a file as a tabular source of the given kind and parses it
// with the mapping. The source is closed before returning.
func (p *Parser) ParseFile(path string, kind SourceKind, mapping *models.FieldMapping) ([]*models.NormalizedRow, []models.CellError, error) {
	source, err := OpenFileSource(path, kind)
	if err != nil {
		return nil, nil, err
	}
	defer source.Close()

	p.logger.WithFields(logger.Fields{
		"path": path,
		"kind": string(kind),
	}).Info("Parsing statement file")

	return p.Parse(source, mapping)
}
