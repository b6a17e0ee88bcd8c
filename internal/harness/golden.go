package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the observable outcome of one scenario run:
// the statement sent to the store and the rows that came back.
// Serialization is deterministic: struct fields keep declaration order
// and encoding/json sorts row keys, so byte comparison is stable.
type TraceSnapshot struct {
	ScenarioName string           `json:"scenario_name"`
	Container    string           `json:"container,omitempty"`
	SQL          string           `json:"sql,omitempty"`
	Args         []any            `json:"args,omitempty"`
	Rows         []map[string]any `json:"rows"`
	Error        string           `json:"error,omitempty"`
}

// snapshotJSON keeps SQL operators readable: HTML escaping would turn
// "age > ?" into "age > ?" in the golden files.
func snapshotJSON(s TraceSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// the golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario fails to run or its expect clause
// does not match; a snapshot mismatch fails the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		return fmt.Errorf("scenario %s failed: %s", scenario.Name, strings.Join(result.Failures, "; "))
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-computed result against the golden
// file named after the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Container:    result.Container,
		SQL:          result.SQL,
		Args:         result.Args,
		Rows:         result.Rows,
		Error:        result.Err,
	}
	data, err := snapshotJSON(snapshot)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
