// Package config translates CLI flag values into the configuration objects
// the import and reconciliation services expect.
package config

import (
	"strconv"
	"strings"

	"ledger-import-service/internal/models"
	"ledger-import-service/internal/reporter"
	apperrors "ledger-import-service/pkg/errors"
	"ledger-import-service/pkg/logger"
)

// DefaultMappingSpec covers the common statement layout: date, description,
// debit, credit, reference.
const DefaultMappingSpec = "transaction_date=0,description=1,debit=2,credit=3,reference=4"

// ParseMappingSpec builds a field mapping from a comma-separated flag value
// such as "transaction_date=0,description=1,debit=2,credit=3". Field names
// accept the same aliases the mapping model does (date, desc, dr, cr, ref).
func ParseMappingSpec(spec, dateFormatID string) (*models.FieldMapping, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "mapping", spec, nil).
			WithSuggestion("provide a mapping like " + DefaultMappingSpec)
	}

	columns := make(map[models.SemanticField]int)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "mapping", part, nil).
				WithSuggestion("each entry must be field=column, e.g. debit=2")
		}

		field, err := models.ParseSemanticField(strings.TrimSpace(kv[0]))
		if err != nil {
			return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "mapping", kv[0], err)
		}

		index, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil || index < 0 {
			return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "mapping", kv[1], err).
				WithSuggestion("column indices are zero-based non-negative integers")
		}

		if _, dup := columns[field]; dup {
			return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "mapping", field.String(), nil).
				WithSuggestion("each field may be mapped only once")
		}
		columns[field] = index
	}

	return models.NewFieldMapping(columns, dateFormatID)
}

// CreateReportConfig builds a validated reporter configuration from CLI flags
func CreateReportConfig(format string, useColors bool) (*reporter.Config, error) {
	config := reporter.DefaultConfig()
	config.Format = reporter.OutputFormat(format)
	config.UseColors = useColors

	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "output-format", format, err).
			WithSuggestion("valid formats: console, json")
	}
	return config, nil
}

// CreateLoggerConfig builds the logger configuration for a CLI run. Without
// verbose mode only warnings and errors reach the terminal so report output
// stays readable.
func CreateLoggerConfig(verbose bool) *logger.Config {
	if verbose {
		return logger.DebugConfig()
	}
	config := logger.DefaultConfig()
	config.Level = logger.WarnLevel
	return config
}
