package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/entq/internal/execute"
	"github.com/roach88/entq/internal/querydesc"
	"github.com/roach88/entq/internal/shaping"
	"github.com/roach88/entq/internal/sqlexpr"
	"github.com/roach88/entq/internal/sqlgen"
)

// CompileResult holds the SQL produced for one query description.
type CompileResult struct {
	Container string `json:"container"`
	SQL       string `json:"sql"`
	Args      []any  `json:"args,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <model-path> <query-file>",
		Short: "Translate a query description to parameterized SQL",
		Long: `Translate a YAML query description against an entity model and print
the parameterized SQL without executing it.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runCompile(opts *RootOptions, modelPath, queryPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, err := compileQuery(modelPath, queryPath, formatter)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, sqlgen.FormatForTrace(result.SQL, result.Args))
	return nil
}

// compileQuery runs the full translation front: load model, build the
// shaped query, compile it, expand deferred IN lists, and generate the
// SQL.
func compileQuery(modelPath, queryPath string, formatter *OutputFormatter) (*CompileResult, error) {
	model, err := LoadModel(modelPath)
	if err != nil {
		return nil, err
	}
	qf, err := querydesc.Load(queryPath)
	if err != nil {
		return nil, err
	}
	formatter.VerboseLog("Translating query over entity %s", qf.Entity)

	factory := sqlexpr.NewFactory(model.Mappings())
	sq, err := qf.Build(model, factory)
	if err != nil {
		return nil, err
	}
	cq, err := shaping.NewCompiler(model).Compile(sq)
	if err != nil {
		return nil, err
	}

	sel, err := execute.ExpandInParameters(cq.Select, factory, qf.Parameters)
	if err != nil {
		return nil, err
	}
	sql, args, err := sqlgen.Generate(sel, qf.Parameters)
	if err != nil {
		return nil, err
	}
	return &CompileResult{Container: cq.Container, SQL: sql, Args: args}, nil
}

// outputCommandError classifies an error and emits it through the
// formatter: load errors are command errors (exit 2), translation and
// validation errors are failures (exit 1).
func outputCommandError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return WrapExitError(ExitCommandError, loadErr.Code, err)
	}
	var descErr *querydesc.Error
	if errors.As(err, &descErr) {
		_ = formatter.Error(ErrCodeBadQuery, descErr.Message, nil)
		return WrapExitError(ExitCommandError, ErrCodeBadQuery, err)
	}
	var te *sqlexpr.TranslationError
	if errors.As(err, &te) {
		_ = formatter.Error(string(te.Code), te.Error(), nil)
		return WrapExitError(ExitFailure, string(te.Code), err)
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitFailure, ErrCodeGeneric, err)
}
