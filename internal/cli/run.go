package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/entq/internal/execute"
	"github.com/roach88/entq/internal/querydesc"
	"github.com/roach88/entq/internal/querytree"
	"github.com/roach88/entq/internal/shaping"
	"github.com/roach88/entq/internal/sqlexpr"
	"github.com/roach88/entq/internal/store"
)

// RunResult holds the materialized results of one query execution.
type RunResult struct {
	Container string `json:"container"`
	Count     int    `json:"count"`
	Results   []any  `json:"results"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "run <model-path> <query-file>",
		Short: "Execute a query description against a SQLite store",
		Long: `Translate a YAML query description, execute it against the SQLite
database, and print the materialized results.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, args[0], args[1], dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRun(opts *RootOptions, modelPath, queryPath, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", dbPath), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", dbPath))
	}

	model, err := LoadModel(modelPath)
	if err != nil {
		return outputCommandError(formatter, err)
	}
	qf, err := querydesc.Load(queryPath)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	factory := sqlexpr.NewFactory(model.Mappings())
	sq, err := qf.Build(model, factory)
	if err != nil {
		return outputCommandError(formatter, err)
	}
	cq, err := shaping.NewCompiler(model).Compile(sq)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(formatter.GetDiagnosticWriter(), &slog.HandlerOptions{
		Level: logLevel(opts.Verbose),
	}))

	enumerable := execute.NewQueryingEnumerable(st, factory, cq, qf.Parameters, "entq.run", logger)
	results, err := enumerable.Drain()
	if err != nil {
		return outputCommandError(formatter, err)
	}

	if results, err = applyCardinality(cq.Cardinality, results); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}

	result := RunResult{Container: cq.Container, Count: len(results), Results: results}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	formatter.VerboseLog("%d result(s) from %s", result.Count, result.Container)
	encoder := json.NewEncoder(formatter.Writer)
	for _, r := range results {
		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// applyCardinality enforces the declared result cardinality.
func applyCardinality(c querytree.ResultCardinality, results []any) ([]any, error) {
	switch c {
	case querytree.CardinalitySingle:
		if len(results) == 0 {
			return nil, fmt.Errorf("query expected exactly one result, got none")
		}
		fallthrough
	case querytree.CardinalitySingleOrDefault:
		if len(results) > 1 {
			return nil, fmt.Errorf("query expected at most one result, got %d", len(results))
		}
	}
	return results, nil
}

func logLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
