package admin

import (
	"errors"
	"fmt"
)

// Error kinds returned by the service. The HTTP layer maps each to a status.
var (
	// ErrUnauthenticated is returned when the caller presented no valid identity.
	ErrUnauthenticated = errors.New("the request must be authenticated")

	// ErrPermissionDenied is returned when the caller lacks the admin claim.
	ErrPermissionDenied = errors.New("only administrators can perform this action")

	// ErrNotFound is returned when the target user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrAlreadyExists is returned when the email is already registered.
	ErrAlreadyExists = errors.New("a user with this email already exists")

	// ErrInternal is returned for failures of the identity store, the profile
	// store or the mail relay. Details are logged, never returned.
	ErrInternal = errors.New("internal error")
)

// OperationError ties an error kind to the operation that produced it.
type OperationError struct {
	// Op is the operation that failed (e.g., "CreateUser").
	Op string

	// Kind is one of the package error kinds.
	Kind error

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("admin: %s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("admin: %s: %v", e.Op, e.Kind)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the error kind.
func (e *OperationError) Is(target error) bool {
	return target == e.Kind
}

func newError(op string, kind, err error) *OperationError {
	return &OperationError{Op: op, Kind: kind, Err: err}
}

// ValidationError is returned for malformed input, before any store is called.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Kind returns the error kind of err, ErrInternal for anything unexpected.
func Kind(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	for _, kind := range []error{ErrUnauthenticated, ErrPermissionDenied, ErrNotFound, ErrAlreadyExists} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}
