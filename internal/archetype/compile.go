package archetype

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Definition is one archetype: the RM type it constrains and the at-coded
// nodes it defines.
type Definition struct {
	ID      string
	RMType  string
	Concept string
	Nodes   map[string]Node // by at-code
}

// Node is an archetype node definition.
type Node struct {
	Name   string
	RMType string
}

// HasNode reports whether the archetype defines the at-code.
func (d *Definition) HasNode(code string) bool {
	_, ok := d.Nodes[code]
	return ok
}

// CompileDefinition parses a CUE value into a Definition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the archetype struct itself; its label is the archetype id:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	iter, _ := v.LookupPath(cue.ParsePath("archetype")).Fields()
//	for iter.Next() {
//		def, err := CompileDefinition(iter.Value())
//	}
func CompileDefinition(v cue.Value) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{Nodes: make(map[string]Node)}

	sels := v.Path().Selectors()
	if len(sels) > 0 {
		if last := sels[len(sels)-1]; last.LabelType() == cue.StringLabel {
			def.ID = last.Unquoted()
		}
	}
	if def.ID == "" {
		return nil, &CompileError{Field: "id", Message: "archetype must be keyed by its id", Pos: v.Pos()}
	}

	rmType, err := requiredString(v, "rm_type")
	if err != nil {
		return nil, err
	}
	def.RMType = rmType

	def.Concept, err = optionalString(v, "concept")
	if err != nil {
		return nil, err
	}

	if err := parseNodes(v, def.Nodes); err != nil {
		return nil, err
	}

	return def, nil
}

// parseNodes extracts the at-code node map. nodes is optional.
func parseNodes(v cue.Value, into map[string]Node) error {
	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	if !nodesVal.Exists() {
		return nil
	}

	iter, err := nodesVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		code := iter.Selector().String()
		nodeVal := iter.Value()

		// A bare string is shorthand for the node name.
		if name, err := nodeVal.String(); err == nil {
			into[code] = Node{Name: name}
			continue
		}

		name, err := requiredString(nodeVal, "name")
		if err != nil {
			return err
		}
		rmType, err := optionalString(nodeVal, "rm_type")
		if err != nil {
			return err
		}
		into[code] = Node{Name: name, RMType: rmType}
	}

	return nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: fmt.Sprintf("%s must be a string", field), Pos: fv.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: fmt.Sprintf("%s must be a string", field), Pos: fv.Pos()}
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
