package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/aqlengine/internal/queryir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool          `json:"valid"`
	Archetypes int           `json:"archetypes"` // repository size; 0 = syntax checked only
	Warnings   []WarningInfo `json:"warnings,omitempty"`
}

// WarningInfo is one archetype warning with its query position.
type WarningInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	SourceOptions
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <query|file|->",
		Short: "Validate a query against the archetype repository",
		Long: `Parse a query and check it against the archetype repository without
reading records.

Reports archetype ids that are not defined, archetypes whose RM type does
not match the containment step, and node ids the archetype does not define.
Without an archetype directory only the syntax is checked.

Exit codes:
  0 - Query is valid
  1 - Query parses but raised archetype warnings
  2 - Syntax error or command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	addArchetypesFlag(cmd, &opts.SourceOptions)

	return cmd
}

func runValidate(opts *ValidateOptions, arg string, cmd *cobra.Command) error {
	env, err := newEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := env.formatter

	text, err := readQuery(arg, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), err)
	}

	repo, err := env.archetypes(opts.Archetypes)
	if err != nil {
		return err
	}
	if repo == nil {
		formatter.VerboseLog("No archetype directory; checking syntax only")
	}

	eng := env.engine(nil, repo, nil)
	vr, err := eng.Validate(text)
	if err != nil {
		return env.queryFailure(err)
	}

	result := ValidationResult{Valid: vr.Valid, Archetypes: repo.Len()}
	for _, w := range vr.Warnings {
		result.Warnings = append(result.Warnings, warningInfo(w))
	}

	if !result.Valid {
		return outputValidationWarnings(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

func warningInfo(w queryir.Warning) WarningInfo {
	return WarningInfo{
		Code:    w.Code,
		Message: w.Message,
		Line:    w.Pos.Line,
		Column:  w.Pos.Column,
	}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ Query is valid")
	return nil
}

// outputValidationWarnings outputs archetype warnings.
func outputValidationWarnings(formatter *OutputFormatter, result ValidationResult) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d warning(s)", len(result.Warnings)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Warnings[0].Code,
				Message: result.Warnings[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "line %d, column %d\n", w.Line, w.Column)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", w.Code, w.Message)
	}
	return failure
}
