package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidQuery   = errors.New("invalid query")
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrDataIntegrity  = errors.New("data integrity violation")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal error")
	ErrTimeout        = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// DataIntegrityError reports a recipe id referenced by the index that the
// corpus does not contain. It means the two were built from different
// snapshots.
type DataIntegrityError struct {
	RecipeID int
	Token    string
}

func (e *DataIntegrityError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s: index token %q references missing recipe %d", ErrDataIntegrity, e.Token, e.RecipeID)
	}
	return fmt.Sprintf("%s: index references missing recipe %d", ErrDataIntegrity, e.RecipeID)
}

func (e *DataIntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

// Is, As and Join re-export the standard helpers so callers need a single
// errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrRecipeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text safe to show a client for err.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	switch {
	case errors.Is(err, ErrRecipeNotFound):
		return ErrRecipeNotFound.Error()
	case errors.Is(err, ErrInvalidQuery):
		return "query must contain at least one ingredient"
	case errors.Is(err, ErrInvalidInput):
		return ErrInvalidInput.Error()
	case errors.Is(err, ErrTimeout):
		return ErrTimeout.Error()
	default:
		return ErrInternal.Error()
	}
}
