package allocation

import (
	"errors"
	"fmt"
)

// ErrSolverUnavailable is returned when the configured solver engine is
// not registered and the greedy fallback is disabled.
var ErrSolverUnavailable = errors.New("solver unavailable")

// ValidationError carries an operator-visible message about invalid
// allocation input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is an allocation input failure.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
