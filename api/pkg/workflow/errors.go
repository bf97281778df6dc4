package workflow

import (
	"errors"
	"fmt"
)

// ErrDraftNotFound is returned when approval is requested before any
// allocation preview stashed a draft.
var ErrDraftNotFound = errors.New("no allocation draft found, run an allocation preview before approval")

// ValidationError carries an operator-visible message about invalid
// workflow inputs.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a workflow input failure.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
