// Package policymesh provides a Go client for the Policy Mesh routing API.
package policymesh

import (
	"errors"
	"fmt"
)

// Error represents an error from the Policy Mesh API with the HTTP status
// code and the server's error message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("policymesh: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404. Audit lookups report every
// miss this way, including when auditing is disabled.
func IsNotFound(err error) bool {
	return hasStatus(err, 404)
}

// IsInvalidInput returns true if the server rejected the request body (400).
func IsInvalidInput(err error) bool {
	return hasStatus(err, 400)
}

// IsTooLarge returns true if the request body exceeded the server limit (413).
func IsTooLarge(err error) bool {
	return hasStatus(err, 413)
}

func hasStatus(err error, status int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == status
	}
	return false
}
