package app

import (
	"fmt"
	"net/http"
)

// DomainError is the service-level error carried through to the HTTP
// envelope. Status picks the response code; Code and Message land in
// the body; Details optionally carries structured context, such as the
// offending field or the sibling positions after a rejected move.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// validationError rejects a malformed request field with 422 and names
// the field in the details.
func validationError(field, message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, map[string]any{"field": field})
}
