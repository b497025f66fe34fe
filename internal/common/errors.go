package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors.
// Kind is one of the sentinels below and Cause is the underlying failure, if any;
// errors.Is matches either.
type AppError struct {
	Code    string
	Message string
	Kind    error
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")

	ErrDuplicateFormNumber = errors.New("form number already issued")
	ErrInvalidBatchSize    = errors.New("invalid batch size")
	ErrInvalidTemplate     = errors.New("invalid template")
	ErrStorage             = errors.New("storage error")

	ErrLedger       = errors.New("ledger error")
	ErrDuplicateKey = errors.New("duplicate ledger key")
	// ErrLedgerInconsistent means a document was saved but its ledger record was not written.
	// It needs manual reconciliation.
	ErrLedgerInconsistent = errors.New("ledger inconsistent with output files")
)

// Error codes carried by AppError.
const (
	CodeConfig             = "CONFIG_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeDuplicateForm      = "DUPLICATE_FORM_NUMBER"
	CodeInvalidBatchSize   = "INVALID_BATCH_SIZE"
	CodeInvalidTemplate    = "INVALID_TEMPLATE"
	CodeStorage            = "STORAGE_ERROR"
	CodeLedger             = "LEDGER_ERROR"
	CodeDuplicateKey       = "DUPLICATE_KEY"
	CodeLedgerInconsistent = "LEDGER_INCONSISTENT"
)

// Error constructors
func NewAppError(code, message string, kind error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

func WrapAppError(code, message string, kind, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Kind:    kind,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func DuplicateFormNumberError(formNumber string) error {
	return NewAppError(CodeDuplicateForm, fmt.Sprintf("form number %s already exists in the ledger", formNumber), ErrDuplicateFormNumber)
}

func InvalidBatchSizeError(count, max int) error {
	return NewAppError(CodeInvalidBatchSize, fmt.Sprintf("batch size must be between 1 and %d, got %d", max, count), ErrInvalidBatchSize)
}

func InvalidInputErrorf(format string, args ...any) error {
	return NewAppError(CodeInvalidInput, fmt.Sprintf(format, args...), ErrInvalidInput)
}

func StorageError(message string, cause error) error {
	return WrapAppError(CodeStorage, message, ErrStorage, cause)
}

func LedgerError(message string, cause error) error {
	return WrapAppError(CodeLedger, message, ErrLedger, cause)
}

// Severity ranks an error for presentation; inconsistencies outrank everything else.
func Severity(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrLedgerInconsistent):
		return 3
	case errors.Is(err, ErrLedger):
		return 2
	default:
		return 1
	}
}
