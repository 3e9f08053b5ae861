package aql

import (
	"errors"
	"fmt"

	"github.com/roach88/aqlengine/internal/queryir"
)

// ErrCodeSyntax is the error code reported for malformed queries.
const ErrCodeSyntax = "E_SYNTAX"

// SyntaxError reports malformed query text or a semantic violation
// (undeclared or duplicate variable, duplicate alias) found while parsing.
type SyntaxError struct {
	Pos     queryir.Pos
	Token   string // Offending token as written ("" at end of input)
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("syntax error at %s: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("syntax error at %s near %q: %s", e.Pos, e.Token, e.Message)
}

// Code returns ErrCodeSyntax.
func (e *SyntaxError) Code() string {
	return ErrCodeSyntax
}

// IsSyntaxError checks if an error is a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

func errorAt(tok token, format string, args ...any) *SyntaxError {
	text := tok.display()
	if tok.Kind == tokEOF {
		text = ""
	}
	return &SyntaxError{Pos: tok.Pos, Token: text, Message: fmt.Sprintf(format, args...)}
}
