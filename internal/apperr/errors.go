// Package apperr holds the error types shared by the dispatcher, the channel
// senders and the HTTP layer. Callers match them with errors.As.
package apperr

import (
	"fmt"
	"strings"
)

// ConfigurationError reports required configuration that is missing.
// It is fatal: the operation refuses to run.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// AuthorizationError reports a bad or absent trust token.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason
}

// ValidationError is scoped to a single send attempt.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TransportError wraps a network failure, a timeout or a non-2xx answer from
// a gateway. Body carries the upstream error payload when there was one.
type TransportError struct {
	Gateway    string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s error status %d: %s", e.Gateway, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s error status %d", e.Gateway, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Gateway, e.Err)
	}
	return e.Gateway + " request failed"
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError reports a store write that failed after a send already
// went out. The send is not undone.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
