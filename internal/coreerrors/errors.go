// Package coreerrors defines the typed error taxonomy shared by every
// engine in the pipeline: transport failures, auth failures, malformed
// LLM output, contract violations, and internal invariant breaks.
package coreerrors

import "fmt"

// TransportError wraps a failure reaching an external service (LLM,
// search) — unreachable hosts, timeouts, 5xx responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a TransportError for operation op.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// AuthError indicates invalid or missing credentials for an external
// call. Fatal to that call; the stream continues.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error during %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func NewAuthError(op string, err error) *AuthError {
	return &AuthError{Op: op, Err: err}
}

// ParseError indicates malformed JSON or a missing required field in
// an LLM response.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error during %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func NewParseError(op string, err error) *ParseError {
	return &ParseError{Op: op, Err: err}
}

// PolicyError indicates a structurally-valid response that violates the
// contract expected of it — e.g. a verdict outside the enumerated set.
type PolicyError struct {
	Op      string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy error during %s: %s", e.Op, e.Message)
}

func NewPolicyError(op, message string) *PolicyError {
	return &PolicyError{Op: op, Message: message}
}

// InvariantError indicates an internal bug — e.g. switching to a topic
// id that doesn't exist. Never swallowed; escalated to the caller and,
// in debug builds, expected to terminate the process.
type InvariantError struct {
	Op      string
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Message)
}

func NewInvariantError(op, message string) *InvariantError {
	return &InvariantError{Op: op, Message: message}
}

// PanicIfDebug panics when err is an InvariantError and debug is true.
// The State Core's invariants are never supposed to be violated; a
// production build logs and moves on, but a debug build fails loudly
// rather than let a broken invariant go unnoticed.
func PanicIfDebug(err error, debug bool) {
	if !debug || err == nil {
		return
	}
	if _, ok := err.(*InvariantError); ok {
		panic(err)
	}
}

// Kind classifies an error into the taxonomy's string tag, used for the
// `error` downstream notification's `kind` field.
func Kind(err error) string {
	switch err.(type) {
	case *TransportError:
		return "transport"
	case *AuthError:
		return "auth"
	case *ParseError:
		return "parse"
	case *PolicyError:
		return "policy"
	case *InvariantError:
		return "invariant"
	default:
		return "unknown"
	}
}
