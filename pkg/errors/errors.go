package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryStream         ErrorCategory = "stream"
	CategoryNormalization  ErrorCategory = "normalization"
	CategoryImport         ErrorCategory = "import"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryStorage        ErrorCategory = "storage"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Stream errors
	CodeStreamUnreadable ErrorCode = "stream_unreadable"
	CodeFileNotFound     ErrorCode = "file_not_found"
	CodeFilePermission   ErrorCode = "file_permission"
	CodeSheetNotFound    ErrorCode = "sheet_not_found"

	// Normalization errors
	CodeInvalidDate    ErrorCode = "invalid_date"
	CodeMissingCell    ErrorCode = "missing_cell"
	CodeUnknownFormat  ErrorCode = "unknown_date_format"
	CodeInvalidMapping ErrorCode = "invalid_mapping"

	// Import errors
	CodeAccountNotFound       ErrorCode = "account_not_found"
	CodeRowPersistenceFailure ErrorCode = "row_persistence_failure"

	// Reconciliation errors
	CodeInvalidCheckpointOrder ErrorCode = "invalid_checkpoint_order"
	CodeWindowQueryFailed      ErrorCode = "window_query_failed"
	CodeCheckpointSaveFailed   ErrorCode = "checkpoint_save_failed"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Storage errors
	CodeDuplicateAccount ErrorCode = "duplicate_account"
	CodeNotFound         ErrorCode = "not_found"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// LedgerError is the base error type for all application errors
type LedgerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *LedgerError) GetExitCode() int {
	switch e.Category {
	case CategoryStream:
		return 2
	case CategoryNormalization:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryImport, CategoryReconciliation:
		return 5
	case CategoryStorage, CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *LedgerError) WithContext(key string, value interface{}) *LedgerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *LedgerError) WithSuggestion(suggestion string) *LedgerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LedgerError
func New(category ErrorCategory, code ErrorCode, message string) *LedgerError {
	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with LedgerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}

	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// StreamError creates a stream-level error for an unreadable source
func StreamError(code ErrorCode, source string, err error) *LedgerError {
	var message string
	var suggestion string

	switch code {
	case CodeStreamUnreadable:
		message = fmt.Sprintf("source stream is unreadable: %s", source)
		suggestion = "verify the file is not truncated or corrupted and retry the import"
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", source)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", source)
		suggestion = "check file permissions and ensure you have read access"
	case CodeSheetNotFound:
		message = fmt.Sprintf("workbook contains no readable sheet: %s", source)
		suggestion = "ensure the spreadsheet has at least one sheet with data"
	default:
		message = fmt.Sprintf("stream error: %s", source)
		suggestion = "check the source and try again"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryStream, code, message)
	} else {
		result = New(CategoryStream, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("source", source)
}

// NormalizationError creates a cell/mapping normalization error
func NormalizationError(code ErrorCode, field string, value interface{}, err error) *LedgerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "check the configured date format matches the file contents"
	case CodeMissingCell:
		message = fmt.Sprintf("mapped cell missing for field '%s'", field)
		suggestion = "check that all rows have as many columns as the field mapping expects"
	case CodeUnknownFormat:
		message = fmt.Sprintf("unknown date format identifier: %v", value)
		suggestion = "use a registered date format identifier such as dd/MM/yyyy"
	case CodeInvalidMapping:
		message = fmt.Sprintf("invalid field mapping for '%s': %v", field, value)
		suggestion = "column indices must be zero or positive and fields must be known"
	default:
		message = fmt.Sprintf("normalization error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryNormalization, code, message)
	} else {
		result = New(CategoryNormalization, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ImportError creates an import batch error
func ImportError(code ErrorCode, accountID string, err error) *LedgerError {
	var message string
	var suggestion string

	switch code {
	case CodeAccountNotFound:
		message = fmt.Sprintf("bank account not found: %s", accountID)
		suggestion = "create the bank account before importing transactions into it"
	case CodeRowPersistenceFailure:
		message = fmt.Sprintf("failed to persist transaction row for account %s", accountID)
		suggestion = "the remaining rows were still processed; re-import only the failed rows"
	default:
		message = fmt.Sprintf("import error for account %s", accountID)
		suggestion = "review the import input and try again"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryImport, code, message)
	} else {
		result = New(CategoryImport, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("account_id", accountID)
}

// ReconciliationError creates a reconciliation error
func ReconciliationError(code ErrorCode, accountID string, err error) *LedgerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidCheckpointOrder:
		message = fmt.Sprintf("checkpoint date must be after the latest checkpoint for account %s", accountID)
		suggestion = "reconcile checkpoints in strictly increasing date order"
	case CodeWindowQueryFailed:
		message = fmt.Sprintf("failed to load transaction window for account %s", accountID)
		suggestion = "check the transaction store and try again"
	case CodeCheckpointSaveFailed:
		message = fmt.Sprintf("failed to persist reconcile checkpoint for account %s", accountID)
		suggestion = "the reconciliation result was computed but not recorded; retry"
	default:
		message = fmt.Sprintf("reconciliation error for account %s", accountID)
		suggestion = "review the reconciliation input and try again"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryReconciliation, code, message)
	} else {
		result = New(CategoryReconciliation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("account_id", accountID)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *LedgerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// StorageError creates a storage-related error
func StorageError(code ErrorCode, entity string, id string, err error) *LedgerError {
	var message string
	var suggestion string

	switch code {
	case CodeDuplicateAccount:
		message = fmt.Sprintf("account already exists: %s", id)
		suggestion = "use a different account identifier"
	case CodeNotFound:
		message = fmt.Sprintf("%s not found: %s", entity, id)
		suggestion = "check the identifier and try again"
	default:
		message = fmt.Sprintf("storage error for %s %s", entity, id)
		suggestion = "check the store state and try again"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryStorage, code, message)
	} else {
		result = New(CategoryStorage, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("entity", entity).
		WithContext("id", id)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *LedgerError {
	message := fmt.Sprintf("unexpected error during %s", operation)

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	} else {
		result = New(CategoryInternal, code, message)
	}

	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*LedgerError        `json:"errors"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*LedgerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	count, exists := es.ByCategory[category]
	return exists && count > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	count, exists := es.ByCode[code]
	return exists && count > 0
}

// Utility functions

// IsLedgerError checks if an error is a LedgerError
func IsLedgerError(err error) bool {
	_, ok := err.(*LedgerError)
	return ok
}

// AsLedgerError extracts a LedgerError from an error chain
func AsLedgerError(err error) (*LedgerError, bool) {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given error code
func HasCode(err error, code ErrorCode) bool {
	ledgerErr, ok := AsLedgerError(err)
	return ok && ledgerErr.Code == code
}

// WrapIfNeeded wraps an error if it's not already a LedgerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}

	if ledgerErr, ok := AsLedgerError(err); ok {
		return ledgerErr
	}

	return Wrap(err, category, code, message)
}
