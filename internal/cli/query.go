package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/aqlengine/internal/engine"
	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/record"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	SourceOptions
	Params      []string // name=value pairs
	ParamsJSON  string   // JSON object file
	Offset      int
	Fetch       int
	MetricsFile string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <file|->",
		Short: "Execute an AQL query",
		Long: `Execute an AQL query and print its rows.

The query is read from a file, from stdin ("-"), or taken literally when the
argument names no file. Parameter values given with --param are typed like
YAML scalars: 2 is a number, true a boolean, anything else a string.
--param takes precedence over --params-json.

Exit codes:
  0 - Query executed
  1 - Internal error (record source failure, cancelled)
  2 - Query rejected (E_SYNTAX, E_UNBOUND_PARAM, E_LIMIT, E_QUOTA) or bad flags

Examples:
  aql query q.aql --data records.yaml
  aql query - --db records.db --param ehr_id=dd616472-9432-4004-ad85-fd47affb1cc8
  aql query q.aql --db records.db --offset 10 --fetch 10 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "query parameter name=value (repeatable)")
	cmd.Flags().StringVar(&opts.ParamsJSON, "params-json", "", "file holding a JSON object of parameters")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip (overrides OFFSET)")
	cmd.Flags().IntVar(&opts.Fetch, "fetch", 0, "rows to return (combined with LIMIT per fetch.precedence)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")
	addSourceFlags(cmd, &opts.SourceOptions)

	return cmd
}

func runQuery(opts *QueryOptions, arg string, cmd *cobra.Command) error {
	env, err := newEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	f := env.formatter

	text, err := readQuery(arg, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, err.Error(), err)
	}
	params, err := parseParams(opts.ParamsJSON, opts.Params)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, err.Error(), err)
	}

	req := engine.Request{Query: text, Params: params}
	if cmd.Flags().Changed("offset") {
		req.Offset = &opts.Offset
	}
	if cmd.Flags().Changed("fetch") {
		req.Fetch = &opts.Fetch
	}

	repo, err := env.archetypes(opts.Archetypes)
	if err != nil {
		return err
	}
	source, closeSource, err := env.source(opts.SourceOptions)
	if err != nil {
		return err
	}
	defer closeSource()

	var (
		reg        *prometheus.Registry
		registerer prometheus.Registerer
	)
	if opts.MetricsFile != "" {
		reg = prometheus.NewRegistry()
		registerer = reg
	}

	result, execErr := env.engine(source, repo, registerer).Execute(cmd.Context(), req)

	if reg != nil {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, reg); err != nil {
			return f.Fail(ExitFailure, ErrCodeInternal, fmt.Sprintf("write metrics: %v", err), err)
		}
		f.VerboseLog("Wrote metrics to %s", opts.MetricsFile)
	}
	if execErr != nil {
		return env.queryFailure(execErr)
	}

	if opts.Format == "json" {
		return f.SuccessWithID(result.ID, result)
	}
	return writeResultText(cmd.OutOrStdout(), f.GetErrWriter(), result)
}

// parseParams merges the --params-json object with --param pairs; pairs
// win on name clashes. It returns nil when neither is given.
func parseParams(jsonFile string, pairs []string) (map[string]ir.Value, error) {
	if jsonFile == "" && len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]ir.Value, len(pairs))

	if jsonFile != "" {
		data, err := os.ReadFile(jsonFile)
		if err != nil {
			return nil, fmt.Errorf("read params file: %w", err)
		}
		v, err := ir.UnmarshalValue(data)
		if err != nil {
			return nil, fmt.Errorf("parse params file %s: %w", jsonFile, err)
		}
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("params file %s: expected a JSON object, got %s", jsonFile, ir.KindOf(v))
		}
		for k, val := range obj {
			params[k] = val
		}
	}

	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "$")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: expected name=value", pair)
		}
		v, err := paramValue(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --param %s: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}

// paramValue types a --param value as a YAML scalar. Empty is the empty
// string, not null.
func paramValue(raw string) (ir.Value, error) {
	if raw == "" {
		return ir.String(""), nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return ir.String(raw), nil
	}
	if len(doc.Content) != 1 || doc.Content[0].Kind != yaml.ScalarNode {
		return ir.String(raw), nil
	}
	return record.ValueFromNode(doc.Content[0])
}

// writeResultText prints rows as an aligned table followed by a row count.
// Warnings go to errW.
func writeResultText(w, errW io.Writer, result *engine.Result) error {
	for _, warning := range result.Warnings {
		fmt.Fprintf(errW, "warning: %s\n", warning)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	names := make([]string, len(result.Columns))
	for i, c := range result.Columns {
		names[i] = c.Name
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))

	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cell, err := cellText(v)
			if err != nil {
				return err
			}
			cells[i] = cell
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "(%d of %d rows)\n", len(result.Rows), result.Total)
	return nil
}

// cellText renders strings bare, null as NULL and everything else as
// canonical JSON.
func cellText(v ir.Value) (string, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case nil, ir.Null:
		return "NULL", nil
	default:
		data, err := ir.MarshalValue(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
