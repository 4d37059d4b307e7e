package records

import (
	"errors"
	"fmt"
)

// Reasons a sheet row is dropped from the working set
var (
	// ErrMissingIssueDate is returned when the Emissao cell is empty or malformed.
	ErrMissingIssueDate = errors.New("missing or malformed issue date")

	// ErrOutsideRetention is returned when the issue date is older than the retention window.
	ErrOutsideRetention = errors.New("issue date outside retention window")

	// ErrInvalidCode is returned when the client code is not an integer.
	ErrInvalidCode = errors.New("invalid client code")
)

// RowError describes why a single sheet row was not turned into a record.
type RowError struct {
	// Row is the 1-based sheet row number.
	Row int

	// Column is the offending column name.
	Column string

	// Value is the raw cell content.
	Value string

	// Err is one of the package sentinels.
	Err error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	return fmt.Sprintf("records: row %d column %s (%q): %v", e.Row, e.Column, e.Value, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RowError) Unwrap() error {
	return e.Err
}

func newRowError(row int, column, value string, err error) *RowError {
	return &RowError{Row: row, Column: column, Value: value, Err: err}
}
