// Package errors provides standardized error handling for the observability
// API engine. It classifies errors into the categories the engine reacts to
// (invalid input, transient transport faults, fatal conditions) and provides
// helpers for consistent wrapping with component and operation context.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes.
type ErrorClass int

const (
	// ErrorInvalid represents errors due to invalid input: bad arguments,
	// malformed operation documents, out-of-range values. Always converted
	// to a structured response, never raised as a transport-level failure.
	ErrorInvalid ErrorClass = iota
	// ErrorTransient represents connection-level faults that affect a
	// single connection and may succeed on retry.
	ErrorTransient
	// ErrorFatal represents unrecoverable errors: schema integrity failures
	// at startup, or an event source that cannot continue producing.
	ErrorFatal
)

// String returns the string representation of ErrorClass.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorInvalid:
		return "invalid"
	case ErrorTransient:
		return "transient"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions.
var (
	// Schema registry errors
	ErrTypeNotFound    = errors.New("type not found in registry")
	ErrFieldNotFound   = errors.New("field not found on type")
	ErrDanglingTypeRef = errors.New("field references unregistered type")
	ErrDuplicateType   = errors.New("type registered more than once")
	ErrNoRootType      = errors.New("schema has no root query type")

	// Argument validation errors
	ErrMissingRequiredArgument = errors.New("missing required argument")
	ErrArgumentOutOfRange      = errors.New("argument value out of range")
	ErrArgumentWrongType       = errors.New("argument value has wrong type")
	ErrArgumentPatternMismatch = errors.New("argument value does not match pattern")

	// Operation document errors
	ErrUnknownOperation = errors.New("unknown operation")
	ErrDepthExceeded    = errors.New("selection depth exceeds maximum")
	ErrEmptySelection   = errors.New("operation selects no fields")

	// Subscription errors
	ErrSubscriptionCancelled = errors.New("subscription cancelled")
	ErrSourceExhausted       = errors.New("event source cannot continue")
	ErrDuplicateOperationID  = errors.New("operation id already in use")

	// Lifecycle errors
	ErrAlreadyStarted    = errors.New("component already started")
	ErrNotStarted        = errors.New("component not started")
	ErrShuttingDown      = errors.New("component is shutting down")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrConnectionTimeout = errors.New("connection timeout")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError wraps an error with its classification.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsInvalid checks if an error is due to invalid input.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrMissingRequiredArgument) ||
		errors.Is(err, ErrArgumentOutOfRange) ||
		errors.Is(err, ErrArgumentWrongType) ||
		errors.Is(err, ErrArgumentPatternMismatch) ||
		errors.Is(err, ErrUnknownOperation) ||
		errors.Is(err, ErrDepthExceeded) ||
		errors.Is(err, ErrEmptySelection) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsTransient checks if an error is a connection-level fault.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	return errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrShuttingDown)
}

// IsFatal checks if an error is unrecoverable for its scope.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrDanglingTypeRef) ||
		errors.Is(err, ErrDuplicateType) ||
		errors.Is(err, ErrNoRootType) ||
		errors.Is(err, ErrSourceExhausted)
}

// Classify returns the error class for an error.
func Classify(err error) ErrorClass {
	switch {
	case IsInvalid(err):
		return ErrorInvalid
	case IsFatal(err):
		return ErrorFatal
	default:
		return ErrorTransient
	}
}

// newClassified creates a new classified error.
// Internal helper - use WrapInvalid(), WrapTransient(), or WrapFatal() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapInvalid wraps an error as invalid input with context.
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// WrapTransient wraps an error as transient with context.
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context.
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}
