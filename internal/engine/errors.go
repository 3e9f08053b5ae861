package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/aqlengine/internal/aql"
)

// ErrorCode categorizes query errors surfaced to callers.
type ErrorCode string

const (
	// ErrCodeUnboundParameter indicates a $name with no supplied value.
	ErrCodeUnboundParameter ErrorCode = "E_UNBOUND_PARAM"

	// ErrCodeLimit indicates contradictory pagination or a limit policy violation.
	ErrCodeLimit ErrorCode = "E_LIMIT"
)

// UnboundParameterError reports the first parameter, in order of appearance
// in the query text, for which no value was supplied. It is raised before any
// record is read.
type UnboundParameterError struct {
	Name string
}

// Error implements the error interface.
func (e *UnboundParameterError) Error() string {
	return fmt.Sprintf("%s: parameter $%s is not bound", ErrCodeUnboundParameter, e.Name)
}

// Code returns ErrCodeUnboundParameter.
func (e *UnboundParameterError) Code() ErrorCode {
	return ErrCodeUnboundParameter
}

// LimitError reports pagination the limit policy rejects.
//
// Details carries the offending values for diagnostics, for example
// {"limit": "20", "max_limit": "19"}.
type LimitError struct {
	Message string
	Details map[string]string
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodeLimit, e.Message)
}

// Code returns ErrCodeLimit.
func (e *LimitError) Code() ErrorCode {
	return ErrCodeLimit
}

// IsUnboundParameterError returns true if the error is an UnboundParameterError.
// Uses errors.As to handle wrapped errors.
func IsUnboundParameterError(err error) bool {
	var ue *UnboundParameterError
	return errors.As(err, &ue)
}

// IsLimitError returns true if the error is a LimitError.
// Uses errors.As to handle wrapped errors.
func IsLimitError(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}

// newLimitError creates a LimitError with key/value detail pairs.
func newLimitError(message string, kv ...any) *LimitError {
	le := &LimitError{Message: message}
	if len(kv) > 0 {
		le.Details = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			le.Details[fmt.Sprint(kv[i])] = fmt.Sprint(kv[i+1])
		}
	}
	return le
}

// CodeOf returns the code of a query error: E_SYNTAX, E_UNBOUND_PARAM,
// E_LIMIT or E_QUOTA. Errors that carry no code, such as record source
// failures and cancellation, return "".
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case aql.IsSyntaxError(err):
		return aql.ErrCodeSyntax
	case IsUnboundParameterError(err):
		return string(ErrCodeUnboundParameter)
	case IsLimitError(err):
		return string(ErrCodeLimit)
	case IsQuotaExceededError(err):
		return string(ErrCodeQuota)
	default:
		return ""
	}
}
