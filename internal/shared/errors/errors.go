package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Lookup errors
	ErrNotFound   = errors.New("not found")
	ErrNoAnswer   = errors.New("no answer records")
	ErrUnresolved = errors.New("host could not be resolved")

	// Lifecycle errors
	ErrNotRunning     = errors.New("monitor is not running")
	ErrAlreadyRunning = errors.New("monitor is already running")
	ErrUnsupported    = errors.New("operation not supported on this platform")

	// Rule errors
	ErrRulesMissing   = errors.New("rule file does not exist")
	ErrInvalidPattern = errors.New("invalid malicious pattern")

	// Repository errors
	ErrRepositoryOperation   = errors.New("repository operation failed")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
)

// ParseError reports malformed operator input such as a port specification or seed URL.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot parse %q", e.Input)
	}
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrInvalidInput }

// ResolutionError signals that a scan target could not be turned into an address.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve %s: %v", e.Host, ErrUnresolved)
	}
	return fmt.Sprintf("resolve %s: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	if e.Err == nil {
		return ErrUnresolved
	}
	return e.Err
}

// NetworkError wraps connection, timeout and DNS transport failures of a one-shot operation.
type NetworkError struct {
	Op     string
	Target string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RuleLoadError indicates that a rule or blocklist file exists but could not be read or decoded.
type RuleLoadError struct {
	Path string
	Err  error
}

func (e *RuleLoadError) Error() string {
	return fmt.Sprintf("load rules from %s: %v", e.Path, e.Err)
}

func (e *RuleLoadError) Unwrap() error { return e.Err }
