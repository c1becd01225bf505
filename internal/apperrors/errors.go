package apperrors

import "errors"

// Error is the domain error type carried across component boundaries.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // User-facing message
	Cause   error  // Wrapped underlying error, never sent over the wire
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// MessageOf returns the user-facing message of err without its cause.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// Sentinels for errors.Is comparisons. Matching is by code, so a wrapped
// error with a different message still matches.
var (
	ErrRegistrationExhausted = New(CodeRegistrationExhausted, "could not generate a unique invite code")
	ErrPersistenceFailure    = New(CodePersistenceFailure, "storage is unavailable")
	ErrInvalidCode           = New(CodeInvalidCode, "invalid or expired invite code")
	ErrSelfAcceptance        = New(CodeSelfAcceptance, "you cannot accept your own invite")
	ErrMultiplePairings      = New(CodeMultiplePairings, "account belongs to more than one couple")
	ErrAlreadyPaired         = New(CodeAlreadyPaired, "account is already paired")
	ErrSendReconciliation    = New(CodeSendReconciliation, "message could not be saved")
	ErrNotFound              = New(CodeNotFound, "not found")
	ErrInvalidTransition     = New(CodeInvalidTransition, "operation not allowed in the current state")
	ErrInvalidArgument       = New(CodeInvalidArgument, "invalid argument")
	ErrUnauthenticated       = New(CodeUnauthenticated, "authentication required")
	ErrForbidden             = New(CodeForbidden, "forbidden")
)
