package harness

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/entq/internal/execute"
	"github.com/roach88/entq/internal/metadata"
	"github.com/roach88/entq/internal/modeldef"
	"github.com/roach88/entq/internal/querydesc"
	"github.com/roach88/entq/internal/querytree"
	"github.com/roach88/entq/internal/shaping"
	"github.com/roach88/entq/internal/sqlexpr"
	"github.com/roach88/entq/internal/sqlgen"
	"github.com/roach88/entq/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or
// underscore. Scenario seed data is test-authored, but identifiers are
// still never interpolated unchecked.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Run executes one scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation:
//
//  1. Compile the inline CUE model
//  2. Create and seed the in-memory store
//  3. Translate the query description and generate SQL
//  4. Execute and materialize the results
//  5. Evaluate the expect clause
//
// Query errors (bad description, untranslatable query, execution
// failure) are captured on the result so scenarios can expect them;
// harness infrastructure errors are returned directly.
func Run(scenario *Scenario) (*Result, error) {
	model, err := compileModel(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to compile scenario model: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := seedStore(st.DB(), scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}

	result := NewResult()
	runQuery(st, model, &scenario.Query, result)
	EvaluateExpectation(result, scenario.Expect)
	return result, nil
}

// compileModel compiles inline CUE source into a metadata model.
func compileModel(src string) (*metadata.Model, error) {
	v := cuecontext.New().CompileString(src)
	if err := v.Err(); err != nil {
		return nil, err
	}
	return modeldef.Compile(v)
}

// runQuery translates, generates, and executes the description,
// recording either the outcome or the query error on the result.
func runQuery(st *store.Store, model *metadata.Model, qf *querydesc.QueryFile, result *Result) {
	factory := sqlexpr.NewFactory(model.Mappings())

	sq, err := qf.Build(model, factory)
	if err != nil {
		result.Err = err.Error()
		return
	}
	cq, err := shaping.NewCompiler(model).Compile(sq)
	if err != nil {
		result.Err = err.Error()
		return
	}
	result.Container = cq.Container

	// Mirror what the enumerable will execute so the expectation can
	// assert on the exact statement.
	sel, err := execute.ExpandInParameters(cq.Select, factory, qf.Parameters)
	if err != nil {
		result.Err = err.Error()
		return
	}
	stmt, args, err := sqlgen.Generate(sel, qf.Parameters)
	if err != nil {
		result.Err = err.Error()
		return
	}
	result.SQL = stmt
	result.Args = args

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rows, err := execute.NewQueryingEnumerable(st, factory, cq, qf.Parameters, "harness", logger).Drain()
	if err != nil {
		result.Err = err.Error()
		return
	}
	if rows, err = enforceCardinality(cq.Cardinality, rows); err != nil {
		result.Err = err.Error()
		return
	}

	for _, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			result.Err = fmt.Sprintf("unexpected result shape %T", r)
			return
		}
		result.Rows = append(result.Rows, row)
	}
}

// enforceCardinality rejects result sets that violate the declared
// cardinality, matching runtime behavior.
func enforceCardinality(c querytree.ResultCardinality, rows []any) ([]any, error) {
	switch c {
	case querytree.CardinalitySingle:
		if len(rows) == 0 {
			return nil, fmt.Errorf("query expected exactly one result, got none")
		}
		fallthrough
	case querytree.CardinalitySingleOrDefault:
		if len(rows) > 1 {
			return nil, fmt.Errorf("query expected at most one result, got %d", len(rows))
		}
	}
	return rows, nil
}

// seedStore creates one table per seeded container and inserts the
// rows. Column affinity is inferred from the first non-null value seen
// per column; a column absent from a row is inserted NULL.
func seedStore(db *sql.DB, seed map[string][]map[string]any) error {
	containers := make([]string, 0, len(seed))
	for name := range seed {
		containers = append(containers, name)
	}
	sort.Strings(containers)

	for _, container := range containers {
		if err := seedContainer(db, container, seed[container]); err != nil {
			return fmt.Errorf("container %s: %w", container, err)
		}
	}
	return nil
}

func seedContainer(db *sql.DB, container string, rows []map[string]any) error {
	if !validIdentifier.MatchString(container) {
		return fmt.Errorf("invalid container name %q", container)
	}

	columns, err := seedColumns(rows)
	if err != nil {
		return err
	}

	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = col.name + " " + col.affinity
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", container, strings.Join(defs, ", "))
	if _, err := db.Exec(ddl); err != nil {
		return err
	}

	names := make([]string, len(columns))
	holes := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.name
		holes[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		container, strings.Join(names, ", "), strings.Join(holes, ", "))

	for i, row := range rows {
		vals := make([]any, len(columns))
		for j, col := range columns {
			vals[j] = row[col.name]
		}
		if _, err := db.Exec(insert, vals...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

type seedColumn struct {
	name     string
	affinity string
}

// seedColumns collects the sorted union of column names across the
// rows, inferring each column's affinity.
func seedColumns(rows []map[string]any) ([]seedColumn, error) {
	affinities := make(map[string]string)
	for _, row := range rows {
		for name, val := range row {
			if !validIdentifier.MatchString(name) {
				return nil, fmt.Errorf("invalid column name %q", name)
			}
			if affinities[name] == "" {
				affinities[name] = columnAffinity(val)
			}
		}
	}

	names := make([]string, 0, len(affinities))
	for name := range affinities {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]seedColumn, len(names))
	for i, name := range names {
		aff := affinities[name]
		if aff == "" {
			aff = "TEXT"
		}
		columns[i] = seedColumn{name: name, affinity: aff}
	}
	return columns, nil
}

func columnAffinity(val any) string {
	switch val.(type) {
	case nil:
		return ""
	case int, int64, bool:
		return "INTEGER"
	case float64:
		return "REAL"
	default:
		return "TEXT"
	}
}
