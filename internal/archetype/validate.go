package archetype

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidID      = "E101" // id is not an archetype id
	ErrMissingRMType  = "E102" // rm_type is empty
	ErrRMTypeMismatch = "E103" // rm_type differs from the class in the id
	ErrInvalidNodeID  = "E104" // node key is not an at-code
	ErrEmptyNodeName  = "E105" // node name is empty
)

// ValidationError represents a definition validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var nodeCode = regexp.MustCompile(`^at\d+(\.\d+)*$`)

// Validate checks a compiled definition.
// Returns all errors found (does not fail-fast), nodes in code order.
func Validate(def *Definition) []ValidationError {
	var errs []ValidationError

	id, err := ParseID(def.ID)
	if err != nil {
		errs = append(errs, ValidationError{Field: "id", Message: err.Error(), Code: ErrInvalidID})
	}

	switch {
	case strings.TrimSpace(def.RMType) == "":
		errs = append(errs, ValidationError{
			Field:   "rm_type",
			Message: "rm_type is required and must be non-empty",
			Code:    ErrMissingRMType,
		})
	case err == nil && id.RMType != def.RMType:
		errs = append(errs, ValidationError{
			Field:   "rm_type",
			Message: fmt.Sprintf("rm_type %s does not match id class %s", def.RMType, id.RMType),
			Code:    ErrRMTypeMismatch,
		})
	}

	codes := make([]string, 0, len(def.Nodes))
	for code := range def.Nodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	for _, code := range codes {
		field := fmt.Sprintf("nodes.%s", code)
		if !nodeCode.MatchString(code) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q is not an at-code", code),
				Code:    ErrInvalidNodeID,
			})
		}
		if strings.TrimSpace(def.Nodes[code].Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "node name must be non-empty",
				Code:    ErrEmptyNodeName,
			})
		}
	}

	return errs
}
