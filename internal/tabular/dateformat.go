package tabular

import (
	"strings"

	"ledger-import-service/pkg/errors"
)

// DateFormatResolver translates a date-format identifier from a field mapping
// into a Go reference layout. Passing the resolver explicitly keeps format
// configuration out of process-wide state.
type DateFormatResolver interface {
	Resolve(formatID string) (string, error)
}

// DefaultDateFormatID is assumed when a field mapping carries no identifier.
const DefaultDateFormatID = "yyyy-MM-dd"

// FormatTable is a map-backed DateFormatResolver preloaded with the
// identifiers that bank export templates commonly declare.
type FormatTable struct {
	layouts map[string]string
}

// NewFormatTable creates a resolver with the standard identifiers registered
func NewFormatTable() *FormatTable {
	return &FormatTable{
		layouts: map[string]string{
			"yyyy-MM-dd":          "2006-01-02",
			"yyyy/MM/dd":          "2006/01/02",
			"dd/MM/yyyy":          "02/01/2006",
			"dd-MM-yyyy":          "02-01-2006",
			"dd.MM.yyyy":          "02.01.2006",
			"MM/dd/yyyy":          "01/02/2006",
			"MM-dd-yyyy":          "01-02-2006",
			"dd MMM yyyy":         "02 Jan 2006",
			"yyyy-MM-dd HH:mm:ss": "2006-01-02 15:04:05",
			"dd/MM/yyyy HH:mm":    "02/01/2006 15:04",
		},
	}
}

// Register adds or replaces a format identifier
func (ft *FormatTable) Register(formatID, layout string) {
	ft.layouts[formatID] = layout
}

// Resolve returns the Go layout for a format identifier. An empty identifier
// resolves to the default ISO date layout.
func (ft *FormatTable) Resolve(formatID string) (string, error) {
	id := strings.TrimSpace(formatID)
	if id == "" {
		id = DefaultDateFormatID
	}

	layout, ok := ft.layouts[id]
	if !ok {
		return "", errors.NormalizationError(errors.CodeUnknownFormat, "date_format", formatID, nil)
	}
	return layout, nil
}
