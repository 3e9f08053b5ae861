package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/aqlengine/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // case filter (doublestar pattern)
	Golden string // golden file directory ("" = no golden comparison)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <suites>",
		Short: "Run query suites",
		Long: `Run YAML query suites against their datasets.

<suites> is a suite file, a directory searched recursively for *.yaml and
*.yml files, or a doublestar pattern such as "testdata/suites/**/*.yaml".
Each case's outcome is checked against its assertions and, with --golden,
against the golden file {suite}.{case}.golden in that directory.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed
  2 - Command error (no suites, malformed suite, missing dataset, etc.)

Examples:
  aql test testdata/suites
  aql test testdata/suites --filter "observation_*"
  aql test testdata/suites --golden testdata/golden --update
  aql test "testdata/suites/**/*.yaml" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only cases whose name matches this pattern")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory")

	return cmd
}

func runTests(opts *TestOptions, pattern string, cmd *cobra.Command) error {
	env, err := newEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := env.formatter

	if opts.Update && opts.Golden == "" {
		return formatter.Fail(ExitCommandError, ErrCodeSuite, "--update requires --golden", nil)
	}

	paths, err := harness.Discover(pattern)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSuite, err.Error(), err)
	}
	formatter.VerboseLog("Found %d suite file(s)", len(paths))

	hopts := []harness.Option{
		harness.WithLogger(env.log),
		harness.WithFilter(opts.Filter),
		harness.WithLimitPolicy(env.cfg.LimitPolicy()),
	}
	if opts.Golden != "" {
		hopts = append(hopts, harness.WithGolden(harness.Golden{Dir: opts.Golden, Update: opts.Update}))
	}

	summary, err := harness.New(hopts...).RunAll(cmd.Context(), paths)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSuite, err.Error(), err)
	}

	if opts.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		outputTestText(formatter.Writer, summary)
	}

	if !summary.Pass() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d case(s) failed", summary.Failed, summary.TotalCases))
	}
	return nil
}

// outputTestText prints one line per case and a summary.
func outputTestText(w io.Writer, summary *harness.Summary) {
	for _, result := range summary.Results {
		for _, c := range result.Cases {
			if c.Pass {
				fmt.Fprintf(w, "✓ %s/%s\n", result.Suite, c.Name)
				continue
			}
			fmt.Fprintf(w, "✗ %s/%s\n", result.Suite, c.Name)
			for _, msg := range c.Errors {
				fmt.Fprintf(w, "  %s\n", msg)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.TotalCases)
}
