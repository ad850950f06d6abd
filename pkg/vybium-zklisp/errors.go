package vybiumzklisp

import "fmt"

// ErrorCode classifies a host-level failure of the public API.
// Language-level failures (unbound variables, arity mismatches and the
// rest of the sentinel taxonomy) are not errors at this layer: they are
// values, carried inside a completed result.
type ErrorCode int

const (
	// ErrUnknown represents an unclassified error
	ErrUnknown ErrorCode = iota

	// ErrInvalidConfig represents an invalid or mismatched configuration
	ErrInvalidConfig

	// ErrParse represents a source text that does not read as an expression
	ErrParse

	// ErrEvaluation represents a host-level evaluation failure
	ErrEvaluation

	// ErrStepBudgetExceeded reports evaluation that did not terminate
	// within the configured step budget
	ErrStepBudgetExceeded

	// ErrEnvDepthExceeded reports a lookup deeper than the provable bound
	ErrEnvDepthExceeded

	// ErrStoreNotFound reports a pointer dereferenced outside its store
	ErrStoreNotFound

	// ErrProofGeneration represents a proof generation failure
	ErrProofGeneration

	// ErrProofVerification represents a proof verification failure
	ErrProofVerification
)

// LangError is the error type returned by the public API.
type LangError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message
func (e *LangError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("zklisp error [%d]: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("zklisp error [%d]: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *LangError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error by code
func (e *LangError) Is(target error) bool {
	t, ok := target.(*LangError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(code ErrorCode, message string, cause error) *LangError {
	return &LangError{Code: code, Message: message, Cause: cause}
}
