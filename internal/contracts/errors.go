package contracts

import (
	"errors"
	"fmt"
)

// Error categories mirror the failure taxonomy of the orchestrator:
// every operation fails with exactly one of these, carrying a
// human-readable message (backend body text when available).
const (
	CategoryAuth         = "auth"
	CategoryValidation   = "validation"
	CategoryUpload       = "upload"
	CategoryList         = "list"
	CategoryDownload     = "download"
	CategoryLink         = "link"
	CategoryRegistration = "registration"
)

type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string {
	return e.Err.Error()
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

func NewError(category, message string) error {
	return &CategorizedError{Category: category, Err: errors.New(message)}
}

func Errorf(category, format string, args ...any) error {
	return &CategorizedError{Category: category, Err: fmt.Errorf(format, args...)}
}

func WrapError(category string, err error) error {
	if err == nil {
		return nil
	}
	var existing *CategorizedError
	if errors.As(err, &existing) {
		return err
	}
	return &CategorizedError{Category: category, Err: err}
}

// ErrorCategory classifies err; uncategorized errors default to
// validation so callers never see an empty category.
func ErrorCategory(err error) string {
	var classified *CategorizedError
	if errors.As(err, &classified) {
		return classified.Category
	}
	return CategoryValidation
}

func IsCategory(err error, category string) bool {
	return err != nil && ErrorCategory(err) == category
}
