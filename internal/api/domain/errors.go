package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrCredentialNotFound is returned when no delegated credential is
	// stored for the requesting principal
	ErrCredentialNotFound = errors.New("credential not found")
)

// RequestError carries a validation or permission failure to the HTTP layer
// together with the status it should be reported with.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// BadRequest builds a 400 error for malformed or incomplete submissions.
func BadRequest(format string, args ...interface{}) error {
	return &RequestError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds a 401 error for unauthenticated requests.
func Unauthorized(format string, args ...interface{}) error {
	return &RequestError{Status: http.StatusUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a 403 error for credential and permission failures.
func Forbidden(format string, args ...interface{}) error {
	return &RequestError{Status: http.StatusForbidden, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a 404 error for missing jobs or fields.
func NotFound(format string, args ...interface{}) error {
	return &RequestError{Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}
