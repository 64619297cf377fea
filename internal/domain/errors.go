package domain

import "errors"

// ErrorCode classifies an expected business failure. Handlers map codes to
// HTTP statuses; everything not covered by a code is an infrastructure fault
// and surfaces as CodeUnknown.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "unknown"
	CodeValidation        ErrorCode = "validation"
	CodeNotFound          ErrorCode = "not_found"
	CodeConflict          ErrorCode = "conflict"
	CodeForbidden         ErrorCode = "forbidden"
	CodeInvalidCredential ErrorCode = "invalid_credential"
	CodeInvalidToken      ErrorCode = "invalid_token"
)

// Error is a typed business failure. Services return it instead of raw
// errors so callers can branch on the code without string matching.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// E builds a typed error.
func E(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the error code from err, or CodeUnknown when err is not a
// *Error (storage faults, wrapped driver errors and the like).
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}
