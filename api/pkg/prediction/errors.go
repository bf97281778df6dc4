package prediction

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotReady is returned when inference or metadata access is
	// attempted before a successful training run.
	ErrModelNotReady = errors.New("model not ready")

	// ErrRoomNotFound is returned when the requested room id does not
	// exist in persisted state.
	ErrRoomNotFound = errors.New("room not found")
)

// ValidationError carries an operator-visible message about invalid
// prediction input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a prediction input failure.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
