package document

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownHandler indicates Invoke named a handler the document
	// does not define.
	ErrCodeUnknownHandler RuntimeErrorCode = "UNKNOWN_HANDLER"

	// ErrCodeTerminated indicates the runtime was already terminated.
	ErrCodeTerminated RuntimeErrorCode = "TERMINATED"

	// ErrCodeQueueClosed indicates a wait on the event queue ended because
	// the runtime shut down.
	ErrCodeQueueClosed RuntimeErrorCode = "QUEUE_CLOSED"
)

// RuntimeError is returned by Runtime operations that the host got wrong.
// The core itself never fails; these are surface errors only.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	Handler string
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Handler != "" {
		return fmt.Sprintf("%s: %s (handler=%s)", e.Code, e.Message, e.Handler)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownHandler returns true if err is an unknown handler error.
// Uses errors.As to handle wrapped errors.
func IsUnknownHandler(err error) bool {
	return hasCode(err, ErrCodeUnknownHandler)
}

// IsTerminated returns true if err reports a terminated runtime.
func IsTerminated(err error) bool {
	return hasCode(err, ErrCodeTerminated)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewUnknownHandlerError creates a RuntimeError for a missing handler.
func NewUnknownHandlerError(handler string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownHandler,
		Message: "document defines no such handler",
		Handler: handler,
	}
}
