// ABOUTME: Client-facing API errors with their HTTP status
// ABOUTME: Anything that is not an apiError or a settings validation error becomes a 500

package api

import "net/http"

// apiError is an error whose message is safe to return to the client.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return e.message
}

var errUnauthorized = &apiError{status: http.StatusUnauthorized, message: "Unauthorized"}

func badRequest(message string) error {
	return &apiError{status: http.StatusBadRequest, message: message}
}

func notFound(message string) error {
	return &apiError{status: http.StatusNotFound, message: message}
}
