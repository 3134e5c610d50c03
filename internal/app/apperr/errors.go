package apperr

import (
	"errors"
	"net/http"
)

// Kind groups business errors by what the caller can do about them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindPrecondition  Kind = "precondition"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindUnavailable   Kind = "unavailable"
)

// Stable error codes.
const (
	CodeValidation                = "VALIDATION_ERROR"
	CodeForbidden                 = "FORBIDDEN"
	CodeMemberNotFound            = "MEMBER_NOT_FOUND"
	CodeMemberNotProvisioned      = "MEMBER_NOT_PROVISIONED"
	CodeAmendmentNotFound         = "AMENDMENT_NOT_FOUND"
	CodeDuplicateIdentity         = "DUPLICATE_IDENTITY"
	CodeAlreadyProvisioned        = "ALREADY_PROVISIONED"
	CodePaymentNotConfirmed       = "PAYMENT_NOT_CONFIRMED"
	CodeAlreadyPendingReview      = "ALREADY_PENDING_REVIEW"
	CodeAlreadyApproved           = "ALREADY_APPROVED"
	CodeNotSubmitted              = "NOT_SUBMITTED"
	CodeInvalidStatusTransition   = "INVALID_STATUS_TRANSITION"
	CodeMemberNotApproved         = "MEMBER_NOT_APPROVED"
	CodeAmendmentAlreadyPending   = "AMENDMENT_ALREADY_PENDING"
	CodeNoChangesDetected         = "NO_CHANGES_DETECTED"
	CodeAlreadyDecided            = "ALREADY_DECIDED"
	CodeAmendmentStale            = "AMENDMENT_STALE"
	CodeReferenceAllocationFailed = "REFERENCE_ALLOCATION_FAILED"
	CodeInvalidCredentials        = "INVALID_CREDENTIALS"
	CodeAccountDeactivated        = "ACCOUNT_DEACTIVATED"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	// Hints are short remediation suggestions shown to the caller.
	Hints   []string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// WithHints returns e with hints appended.
func (e *Error) WithHints(hints ...string) *Error {
	e.Hints = append(e.Hints, hints...)
	return e
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

func Validation(message string, details map[string]any) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusUnprocessableEntity, Code: CodeValidation, Message: message, Details: details}
}

// Field is a shortcut for a single-field validation error.
func Field(field, reason string) *Error {
	return Validation("invalid "+field, map[string]any{field: reason})
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Status: http.StatusConflict, Code: code, Message: message}
}

func Precondition(code, message string) *Error {
	return &Error{Kind: KindPrecondition, Status: http.StatusConflict, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Code: code, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindAuthorization, Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

func Unavailable(code, message string) *Error {
	return &Error{Kind: KindUnavailable, Status: http.StatusServiceUnavailable, Code: code, Message: message}
}
