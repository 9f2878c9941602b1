package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies engine errors for propagation decisions: fatal
// classes abort the process, the rest stay contained at the component
// boundary.
type ErrorClass string

const (
	// ErrorClassConfig marks invalid input: unknown kinds, malformed
	// arguments, bad variable references. Fatal.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassCycle marks a circular dependency in the component or
	// task graph. Fatal.
	ErrorClassCycle ErrorClass = "cycle"

	// ErrorClassTransport marks a failed HTTP exchange with the cluster.
	// Contained: the owning component fails.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassDependency marks a task sunk because an upstream task
	// failed. Contained.
	ErrorClassDependency ErrorClass = "dependency"

	// ErrorClassInternal marks a violated engine invariant.
	ErrorClassInternal ErrorClass = "internal"
)

// Error is a classified engine error with component context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass

	// Message is the human-readable message.
	Message string

	// Component is the cluster/kind/name of the component involved.
	Component string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("[%s] %s (component=%s): %s", e.Class, e.Message, e.Component, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

func (e *Error) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is matches errors of the same class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithComponent attaches component context.
func (e *Error) WithComponent(name string) *Error {
	e.Component = name
	return e
}

// NewConfigError creates a fatal configuration error.
func NewConfigError(message string, err error) *Error {
	return &Error{Class: ErrorClassConfig, Message: message, Err: err}
}

// NewCycleError creates a fatal circular-dependency error.
func NewCycleError(message string, err error) *Error {
	return &Error{Class: ErrorClassCycle, Message: message, Err: err}
}

// NewTransportError creates a contained HTTP transport error.
func NewTransportError(message string, err error) *Error {
	return &Error{Class: ErrorClassTransport, Message: message, Err: err}
}

// NewDependencyError creates a contained dependency-failure error.
func NewDependencyError(message string, err error) *Error {
	return &Error{Class: ErrorClassDependency, Message: message, Err: err}
}

// NewInternalError creates an internal invariant error.
func NewInternalError(message string, err error) *Error {
	return &Error{Class: ErrorClassInternal, Message: message, Err: err}
}

// IsFatal reports whether the error must abort the process.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassConfig || e.Class == ErrorClassCycle
	}
	return false
}

// IsCycle reports whether the error is a circular-dependency error.
func IsCycle(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassCycle
	}
	return false
}
