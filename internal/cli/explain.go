package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/aqlengine/internal/engine"
	"github.com/roach88/aqlengine/internal/queryir"
)

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	Query string     `json:"q"`
	Scans []ScanInfo `json:"scans"`
	Plan  string     `json:"plan"`
}

// ScanInfo describes one level of the scan plan.
type ScanInfo struct {
	Level    int    `json:"level"`
	Kind     string `json:"kind"`
	Type     string `json:"type"`
	Var      string `json:"var,omitempty"`
	Filter   string `json:"filter,omitempty"`
	Implicit bool   `json:"implicit,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <query|file|->",
		Short: "Print the scan plan of a query",
		Long: `Parse a query and print its nested scan plan without reading records.

Each FROM step becomes one scan level; implicit EHR and composition scans
are marked. The WHERE, ORDER BY and SELECT clauses follow.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runExplain(opts *RootOptions, arg string, cmd *cobra.Command) error {
	env, err := newEnvironment(opts, cmd)
	if err != nil {
		return err
	}

	text, err := readQuery(arg, cmd.InOrStdin())
	if err != nil {
		return env.formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), err)
	}

	plan, err := env.engine(nil, nil, nil).Explain(text)
	if err != nil {
		return env.queryFailure(err)
	}

	if opts.Format == "json" {
		return env.formatter.Success(explainResult(text, plan))
	}
	fmt.Fprint(cmd.OutOrStdout(), plan.String())
	return nil
}

func explainResult(text string, plan *engine.Plan) ExplainResult {
	scans := make([]ScanInfo, len(plan.Scans))
	for i, s := range plan.Scans {
		scans[i] = ScanInfo{
			Level:    i,
			Kind:     s.Kind.String(),
			Type:     s.Type,
			Var:      s.Var,
			Implicit: s.Implicit,
		}
		if s.Filter != nil {
			scans[i].Filter = queryir.FormatFilter(s.Filter)
		}
	}
	return ExplainResult{
		Query: text,
		Scans: scans,
		Plan:  strings.TrimSuffix(plan.String(), "\n"),
	}
}
