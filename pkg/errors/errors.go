package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrRouteNotFound          = errors.New("route not found")
	ErrSourceUnreadable       = errors.New("source workbook unreadable")
	ErrPersistenceUnavailable = errors.New("persistence layer unavailable")
	ErrBatchWriteFailed       = errors.New("batch write failed")
	ErrRowInvalid             = errors.New("row is invalid")
	ErrLifecycleConflict      = errors.New("conflicting lifecycle classification")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeRouteNotFound          = "ROUTE_NOT_FOUND"
	ErrCodeSourceUnreadable       = "SOURCE_UNREADABLE"
	ErrCodePersistenceUnavailable = "PERSISTENCE_UNAVAILABLE"
	ErrCodeBatchWriteFailed       = "BATCH_WRITE_FAILED"
	ErrCodeRowInvalid             = "ROW_INVALID"
	ErrCodeLifecycleConflict      = "LIFECYCLE_CONFLICT"
	ErrCodeDatabaseError          = "DATABASE_ERROR"
	ErrCodeCacheError             = "CACHE_ERROR"
)

func WrapRouteNotFound(name string) *BusinessError {
	return NewBusinessError(
		ErrCodeRouteNotFound,
		fmt.Sprintf("Route %s not found", name),
		ErrRouteNotFound,
	)
}

// WrapSourceUnreadable marks a fatal failure to open or read the workbook.
func WrapSourceUnreadable(source string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeSourceUnreadable,
		fmt.Sprintf("cannot read source %s", source),
		errors.Join(ErrSourceUnreadable, err),
	)
}

func WrapPersistenceUnavailable(err error) *BusinessError {
	return NewBusinessError(
		ErrCodePersistenceUnavailable,
		"cannot reach the database",
		errors.Join(ErrPersistenceUnavailable, err),
	)
}

func WrapBatchWriteFailed(route string, batch int, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeBatchWriteFailed,
		fmt.Sprintf("route %s batch %d failed to commit", route, batch),
		errors.Join(ErrBatchWriteFailed, err),
	)
}

func WrapRowInvalid(sheet string, row int, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeRowInvalid,
		fmt.Sprintf("sheet %s row %d is invalid", sheet, row),
		errors.Join(ErrRowInvalid, err),
	)
}

func WrapLifecycleConflict(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLifecycleConflict,
		fmt.Sprintf("loan %s classified as finished by payoff and by renewal", loanID),
		ErrLifecycleConflict,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
