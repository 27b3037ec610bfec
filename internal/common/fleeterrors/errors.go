// Package fleeterrors contains typed errors shared across the fleet driver.
// Callers that need to react to a specific condition recover these types with
// errors.As; everything else treats them as opaque.
package fleeterrors

import (
	"fmt"
)

// ErrInvalidArgument is returned whenever a configuration value or argument
// is invalid. Message is optional and omitted from the error message if not
// provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "scheduler.workers"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// ErrNotFound is returned whenever some resource the fleet depends on, such
// as a saved environment or a test binary, does not exist. Type and Message
// are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}
