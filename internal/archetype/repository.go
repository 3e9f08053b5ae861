package archetype

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/aqlengine/internal/queryir"
)

// ErrNotFound is returned by Resolve for an unknown archetype id.
var ErrNotFound = errors.New("archetype: not found")

// Resolver looks up archetype definitions by id.
type Resolver interface {
	Resolve(id string) (*Definition, error)
}

var (
	_ Resolver       = (*Repository)(nil)
	_ queryir.Schema = (*Repository)(nil)
)

// Repository is an immutable set of archetype definitions.
type Repository struct {
	defs map[string]*Definition
}

// NewRepository builds a repository from compiled definitions.
// Duplicate ids are an error.
func NewRepository(defs ...*Definition) (*Repository, error) {
	r := &Repository{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate archetype %s", d.ID)
		}
		r.defs[d.ID] = d
	}
	return r, nil
}

// Resolve implements Resolver.
func (r *Repository) Resolve(id string) (*Definition, error) {
	if r != nil {
		if d, ok := r.defs[id]; ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// RMType implements queryir.Schema.
func (r *Repository) RMType(id string) (string, bool) {
	d, err := r.Resolve(id)
	if err != nil {
		return "", false
	}
	return d.RMType, true
}

// HasNode implements queryir.Schema.
func (r *Repository) HasNode(id, nodeID string) bool {
	d, err := r.Resolve(id)
	return err == nil && d.HasNode(nodeID)
}

// IDs returns every archetype id in sorted order.
func (r *Repository) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of definitions.
func (r *Repository) Len() int {
	if r == nil {
		return 0
	}
	return len(r.defs)
}

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Load error codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeReadFailed  = "E004" // File read failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeDuplicate   = "E007" // Archetype id declared twice
)

// LoadError represents an error that occurred during loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load compiles every .cue file under dir, recursively, into a repository.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors; the repository then
// holds every definition that compiled and validated.
func Load(dir string, mode LoadMode) (*Repository, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("archetypes directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing archetypes directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	repo := &Repository{defs: make(map[string]*Definition)}
	var errs []error

	for _, path := range files {
		fileErrs := repo.loadFile(ctx, path)
		errs = append(errs, fileErrs...)
		if len(errs) > 0 && mode == LoadModeFailFast {
			return repo, errs[:1]
		}
	}

	return repo, errs
}

// loadFile compiles one file and adds its valid definitions.
func (r *Repository) loadFile(ctx *cue.Context, path string) []error {
	src, err := os.ReadFile(path)
	if err != nil {
		return []error{&LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}}
	}

	value := ctx.CompileBytes(src, cue.Filename(path))
	if err := value.Err(); err != nil {
		return []error{convertCompileError(formatCUEError(err), path, ErrCodeBuildFailed)}
	}

	archetypes := value.LookupPath(cue.ParsePath("archetype"))
	if !archetypes.Exists() {
		return nil
	}

	iter, err := archetypes.Fields()
	if err != nil {
		return []error{convertCompileError(formatCUEError(err), path, ErrCodeBuildFailed)}
	}

	var errs []error
	for iter.Next() {
		def, err := CompileDefinition(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, path, ErrCodeGeneric))
			continue
		}

		if verrs := Validate(def); len(verrs) > 0 {
			for _, ve := range verrs {
				errs = append(errs, &LoadError{
					Code:    ve.Code,
					Message: fmt.Sprintf("%s: %s: %s", def.ID, ve.Field, ve.Message),
					Pos:     iter.Value().Pos(),
				})
			}
			continue
		}

		if _, dup := r.defs[def.ID]; dup {
			errs = append(errs, &LoadError{
				Code:    ErrCodeDuplicate,
				Message: fmt.Sprintf("archetype %s is declared more than once", def.ID),
				Pos:     iter.Value().Pos(),
			})
			continue
		}
		r.defs[def.ID] = def
	}
	return errs
}

// FindCUEFiles returns all .cue file paths under dir in lexical order.
func FindCUEFiles(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.cue", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)

	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	return files, nil
}

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error, path, fallback string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    mapFieldToErrorCode(compileErr.Field, fallback),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    fallback,
		Message: fmt.Sprintf("%s: %v", path, err),
	}
}

// mapFieldToErrorCode maps a compile error field to an error code.
func mapFieldToErrorCode(field, fallback string) string {
	switch field {
	case "id":
		return ErrInvalidID
	case "rm_type":
		return ErrMissingRMType
	case "name":
		return ErrEmptyNodeName
	case "cue":
		return ErrCodeBuildFailed
	default:
		return fallback
	}
}
