package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/aqlengine/internal/archetype"
	"github.com/roach88/aqlengine/internal/config"
	"github.com/roach88/aqlengine/internal/engine"
	"github.com/roach88/aqlengine/internal/record"
	"github.com/roach88/aqlengine/internal/store"
)

// SourceOptions selects the record source and archetype repository of a
// command. Empty fields fall back to the configuration.
type SourceOptions struct {
	Data       string // dataset file, queried in memory
	DB         string // SQLite store written by "aql load"
	Archetypes string // archetype directory
}

func addSourceFlags(cmd *cobra.Command, o *SourceOptions) {
	cmd.Flags().StringVar(&o.Data, "data", "", "dataset file (YAML or JSON) to query in memory")
	cmd.Flags().StringVar(&o.DB, "db", "", "SQLite store to query (default store.path)")
	addArchetypesFlag(cmd, o)
	cmd.MarkFlagsMutuallyExclusive("data", "db")
}

func addArchetypesFlag(cmd *cobra.Command, o *SourceOptions) {
	cmd.Flags().StringVar(&o.Archetypes, "archetypes", "", "archetype directory (default archetypes.dir)")
}

// environment is what a command runs with: resolved configuration, a
// logger and the output formatter.
type environment struct {
	cfg       *config.Config
	log       zerolog.Logger
	formatter *OutputFormatter
}

// newEnvironment loads the configuration named by --config, applies the
// global flags on top and builds the logger. Failures are reported through
// the formatter and returned as ExitCommandError.
func newEnvironment(opts *RootOptions, cmd *cobra.Command) (*environment, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), err)
	}
	if opts.Verbose {
		cfg.Log.Level = zerolog.LevelDebugValue
	}
	if opts.Format == "json" {
		cfg.Log.Format = "json"
	}
	if err := cfg.Validate(); err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), err)
	}

	return &environment{
		cfg:       cfg,
		log:       newLogger(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Level()),
		formatter: formatter,
	}, nil
}

// newLogger returns a JSON logger for the json format and a console logger
// otherwise.
func newLogger(w io.Writer, format string, level zerolog.Level) zerolog.Logger {
	if format == "json" {
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger()
}

// archetypes loads the archetype repository from dir, or from
// archetypes.dir when dir is empty. It returns nil when neither is set.
func (env *environment) archetypes(dir string) (*archetype.Repository, error) {
	if dir == "" {
		dir = env.cfg.Archetypes.Dir
	}
	if dir == "" {
		return nil, nil
	}

	repo, errs := archetype.Load(dir, archetype.LoadModeCollectAll)
	if len(errs) > 0 {
		joined := errors.Join(errs...)
		return nil, env.formatter.Fail(ExitCommandError, ErrCodeArchetypes, joined.Error(), joined)
	}
	env.formatter.VerboseLog("Loaded %d archetype(s) from %s", repo.Len(), dir)
	return repo, nil
}

// source opens the record source. The returned close function must be
// called when the command is done with it.
func (env *environment) source(o SourceOptions) (record.Source, func() error, error) {
	if o.Data != "" {
		ds, err := record.LoadDataset(o.Data, newRecordID)
		if err != nil {
			return nil, nil, env.formatter.Fail(ExitCommandError, ErrCodeSource, err.Error(), err)
		}
		env.formatter.VerboseLog("Loaded %d EHR(s) from %s", len(ds.Records), o.Data)
		return record.NewSnapshot(ds), func() error { return nil }, nil
	}

	path := o.DB
	if path == "" {
		path = env.cfg.Store.Path
	}
	if path == "" {
		return nil, nil, env.formatter.Fail(ExitCommandError, ErrCodeSource,
			"no record source: pass --data or --db, or set store.path", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil, env.formatter.Fail(ExitCommandError, ErrCodeSource,
			fmt.Sprintf("store not found: %s", path), err)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, nil, env.formatter.Fail(ExitCommandError, ErrCodeSource, err.Error(), err)
	}
	env.formatter.VerboseLog("Opened store %s", path)
	return st, st.Close, nil
}

// engine builds an engine over source with the configured limits. repo and
// reg are optional.
func (env *environment) engine(source record.Source, repo *archetype.Repository, reg prometheus.Registerer) *engine.Engine {
	opts := []engine.EngineOption{
		engine.WithLogger(env.log),
		engine.WithWorkers(env.cfg.Workers),
		engine.WithLimitPolicy(env.cfg.LimitPolicy()),
		engine.WithMaxBindings(env.cfg.MaxBindings),
	}
	if repo != nil {
		opts = append(opts, engine.WithArchetypes(repo))
	}
	if reg != nil {
		opts = append(opts, engine.WithMetrics(engine.NewMetrics(reg)))
	}
	return engine.New(source, opts...)
}

// queryFailure reports an Execute, Explain or Validate error. Query errors
// exit with ExitCommandError, anything else with ExitFailure.
func (env *environment) queryFailure(err error) error {
	if code := engine.CodeOf(err); code != "" {
		return env.formatter.Fail(ExitCommandError, code, err.Error(), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return env.formatter.Fail(ExitFailure, ErrCodeInternal, "query cancelled", err)
	}
	return env.formatter.Fail(ExitFailure, ErrCodeInternal, err.Error(), err)
}

// newRecordID names EHRs and compositions that a dataset leaves without an
// identifier.
func newRecordID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// readQuery returns query text from stdin ("-"), from a file, or the
// argument itself.
func readQuery(arg string, stdin io.Reader) (string, error) {
	var text string
	switch info, err := os.Stat(arg); {
	case arg == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read query from stdin: %w", err)
		}
		text = string(data)
	case err == nil && !info.IsDir():
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		text = string(data)
	default:
		text = arg
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("query is empty")
	}
	return text, nil
}
