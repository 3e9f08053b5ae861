package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/aqlengine/internal/record"
	"github.com/roach88/aqlengine/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	DB string
}

// LoadResult reports what a load inserted and what the store now holds.
type LoadResult struct {
	Dataset              string `json:"dataset"`
	Store                string `json:"store"`
	InsertedEHRs         int    `json:"inserted_ehrs"`
	InsertedCompositions int    `json:"inserted_compositions"`
	Conflicts            int    `json:"conflicts"`
	TotalEHRs            int    `json:"total_ehrs"`
	TotalCompositions    int    `json:"total_compositions"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <dataset>",
		Short: "Import a dataset into a SQLite store",
		Long: `Import a YAML or JSON dataset into a SQLite store, creating it if needed.

EHRs without ehr_id and compositions without uid are given generated
identifiers. Loading is idempotent: records whose identifiers are already
stored are skipped.

Examples:
  aql load testdata/datasets/minimal.yaml --db records.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite store to write (default store.path)")

	return cmd
}

func runLoad(opts *LoadOptions, datasetPath string, cmd *cobra.Command) error {
	env, err := newEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := env.formatter

	path := opts.DB
	if path == "" {
		path = env.cfg.Store.Path
	}
	if path == "" {
		return formatter.Fail(ExitCommandError, ErrCodeSource, "no store: pass --db or set store.path", nil)
	}

	ds, err := record.LoadDataset(datasetPath, newRecordID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSource, err.Error(), err)
	}
	formatter.VerboseLog("Read %d EHR(s) from %s", len(ds.Records), datasetPath)

	st, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInternal, err.Error(), err)
	}
	defer st.Close()

	ctx := cmd.Context()
	stats, err := st.Import(ctx, ds)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInternal, err.Error(), err)
	}
	ehrs, compositions, err := st.Count(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInternal, err.Error(), err)
	}

	env.log.Info().
		Str("dataset", datasetPath).
		Str("store", path).
		Int("ehrs", stats.EHRs).
		Int("compositions", stats.Compositions).
		Int("conflicts", stats.Conflicts).
		Msg("dataset imported")

	result := LoadResult{
		Dataset:              datasetPath,
		Store:                path,
		InsertedEHRs:         stats.EHRs,
		InsertedCompositions: stats.Compositions,
		Conflicts:            stats.Conflicts,
		TotalEHRs:            ehrs,
		TotalCompositions:    compositions,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Loaded %s into %s\n", datasetPath, path)
	fmt.Fprintf(formatter.Writer, "  Inserted: %d EHR(s), %d composition(s)\n", stats.EHRs, stats.Compositions)
	if stats.Conflicts > 0 {
		fmt.Fprintf(formatter.Writer, "  Skipped:  %d record(s) stored with different content\n", stats.Conflicts)
	}
	fmt.Fprintf(formatter.Writer, "  Store:    %d EHR(s), %d composition(s)\n", ehrs, compositions)
	return nil
}
