package app

import "fmt"

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

// errConfirmRequired gates destructive operations: the caller must resend
// the request with confirm=true.
func errConfirmRequired() *DomainError {
	return domainError(409, "CONFIRM_REQUIRED", "This operation is destructive and requires confirmation", nil)
}

func errNotFound(kind, id string) *DomainError {
	return domainError(404, "NOT_FOUND", fmt.Sprintf("%s %s not found", kind, id), nil)
}

func errNoOpenDocument() *DomainError {
	return domainError(409, "NO_OPEN_DOCUMENT", "Open a document first", nil)
}

func errValidation(message string) *DomainError {
	return domainError(422, "VALIDATION_ERROR", message, nil)
}
