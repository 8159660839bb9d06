package meroShareApi

import "fmt"

// AuthError covers login failures and requests that stay unauthorized
// after the single re-login attempt.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("authentication failed with status %d: %s", e.StatusCode, e.Message)
}

// ApplyError is a rejected share application; Message carries the server
// supplied reason when the response body had one.
type ApplyError struct {
	StatusCode int
	Message    string
}

func (e *ApplyError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("share application failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("share application failed with status %d: %s", e.StatusCode, e.Message)
}
