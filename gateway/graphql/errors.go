package graphql

import (
	stderrors "errors"
	"net/http"

	"github.com/songlinshu/vector/errors"
)

var (
	errHTTPMethod           = stderrors.New("operations must be sent as POST requests")
	errSubscriptionOverPost = stderrors.New("subscriptions require a WebSocket connection")
)

// statusFor maps an operation-level rejection to an HTTP status. Field-level
// failures never reach here; they travel inside a 200 envelope.
func statusFor(err error) int {
	switch {
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// failureReason produces the low-cardinality label recorded for rejected
// operations.
func failureReason(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrDepthExceeded):
		return "depth"
	case stderrors.Is(err, errors.ErrUnknownOperation):
		return "unknown_operation"
	case stderrors.Is(err, errors.ErrEmptySelection):
		return "empty_selection"
	case stderrors.Is(err, errors.ErrMissingRequiredArgument):
		return "missing_argument"
	case stderrors.Is(err, errors.ErrArgumentOutOfRange):
		return "out_of_range"
	case stderrors.Is(err, errors.ErrArgumentWrongType):
		return "wrong_type"
	case stderrors.Is(err, errors.ErrArgumentPatternMismatch):
		return "pattern"
	case errors.IsInvalid(err):
		return "syntax"
	default:
		return "other"
	}
}
