// Package apperrors provides the error taxonomy shared by the pairing and chat
// components, and its mapping onto HTTP.
package apperrors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error outside the taxonomy.
	CodeUnknown Code = "UNKNOWN"

	// Pairing errors
	CodeRegistrationExhausted Code = "REGISTRATION_EXHAUSTED"
	CodeInvalidCode           Code = "INVALID_CODE"
	CodeSelfAcceptance        Code = "SELF_ACCEPTANCE"
	CodeMultiplePairings      Code = "MULTIPLE_PAIRINGS_FOUND"
	CodeAlreadyPaired         Code = "ALREADY_PAIRED"

	// Messaging errors
	CodeSendReconciliation Code = "SEND_RECONCILIATION_FAILURE"

	// Storage errors
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"
	CodeNotFound           Code = "NOT_FOUND"

	// Session and request errors
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeForbidden         Code = "FORBIDDEN"
)

// HTTPStatus maps a code onto the status the API answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidCode, CodeNotFound:
		return http.StatusNotFound
	case CodeSelfAcceptance, CodeAlreadyPaired, CodeInvalidTransition:
		return http.StatusConflict
	case CodeRegistrationExhausted, CodePersistenceFailure:
		return http.StatusServiceUnavailable
	case CodeSendReconciliation:
		return http.StatusBadGateway
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the user can reasonably try the same action again.
// MULTIPLE_PAIRINGS_FOUND is a data defect and is the notable exception.
func (c Code) Retryable() bool {
	switch c {
	case CodeRegistrationExhausted, CodePersistenceFailure, CodeInvalidCode,
		CodeSelfAcceptance, CodeSendReconciliation, CodeInvalidArgument:
		return true
	default:
		return false
	}
}
