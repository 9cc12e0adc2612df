package extension

import (
	"errors"
	"fmt"
)

// ErrNotActive indicates an operation that needs an active extension.
var ErrNotActive = errors.New("extension not active")

// ComponentError represents an error from a specific component during
// activation or deactivation.
type ComponentError struct {
	Component string // Component name (e.g., "connection", "features")
	Action    string // Action being performed
	Err       error  // Underlying error
}

// NewComponentError creates a new ComponentError. It returns nil when err
// is nil so results can be passed straight to multierr.
func NewComponentError(component, action string, err error) error {
	if err == nil {
		return nil
	}
	return &ComponentError{
		Component: component,
		Action:    action,
		Err:       err,
	}
}

func (e *ComponentError) Error() string {
	if e == nil {
		return ""
	}
	if e.Action != "" {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *ComponentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is implements errors.Is for ComponentError.
// Matches both the wrapper itself and the wrapped error.
func (e *ComponentError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*ComponentError); ok {
		return e == t
	}
	return errors.Is(e.Err, target)
}
