package harness

import (
	"fmt"
	"strings"
)

// Expectation is the expected outcome of one scenario run.
// Every field is optional; empty fields are not checked.
type Expectation struct {
	// SQL is the exact generated statement.
	SQL string `yaml:"sql,omitempty"`

	// Args are the exact statement arguments, in placeholder order.
	Args []any `yaml:"args,omitempty"`

	// Count is the expected number of result rows.
	Count *int `yaml:"count,omitempty"`

	// Rows are expected result rows, matched positionally.
	// Subset match: only the named fields are compared.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Error is a substring the query error must contain. When set,
	// the query is expected to fail.
	Error string `yaml:"error,omitempty"`
}

// IsEmpty reports whether the expectation checks nothing.
func (e Expectation) IsEmpty() bool {
	return e.SQL == "" && e.Args == nil && e.Count == nil && len(e.Rows) == 0 && e.Error == ""
}

// AssertionError describes one expectation mismatch.
type AssertionError struct {
	Field    string // which expectation field failed
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s", e.Actual)
	return buf.String()
}

// EvaluateExpectation checks the expectation against the run outcome,
// recording every mismatch on the result.
func EvaluateExpectation(r *Result, e Expectation) {
	if e.Error != "" {
		if r.Err == "" {
			r.AddFailure((&AssertionError{
				Field:    "error",
				Expected: fmt.Sprintf("query error containing %q", e.Error),
				Actual:   "query succeeded",
			}).Error())
		} else if !strings.Contains(r.Err, e.Error) {
			r.AddFailure((&AssertionError{
				Field:    "error",
				Expected: fmt.Sprintf("query error containing %q", e.Error),
				Actual:   r.Err,
			}).Error())
		}
		return
	}

	if r.Err != "" {
		r.AddFailure((&AssertionError{
			Field:    "error",
			Expected: "query succeeds",
			Actual:   r.Err,
		}).Error())
		return
	}

	if e.SQL != "" && r.SQL != e.SQL {
		r.AddFailure((&AssertionError{
			Field:    "sql",
			Expected: e.SQL,
			Actual:   r.SQL,
		}).Error())
	}

	if e.Args != nil {
		if err := matchArgs(r.Args, e.Args); err != nil {
			r.AddFailure(err.Error())
		}
	}

	if e.Count != nil && len(r.Rows) != *e.Count {
		r.AddFailure((&AssertionError{
			Field:    "count",
			Expected: fmt.Sprintf("%d row(s)", *e.Count),
			Actual:   fmt.Sprintf("%d row(s)", len(r.Rows)),
		}).Error())
	}

	for i, want := range e.Rows {
		if i >= len(r.Rows) {
			r.AddFailure((&AssertionError{
				Field:    fmt.Sprintf("rows[%d]", i),
				Expected: fmt.Sprintf("row matching %v", want),
				Actual:   fmt.Sprintf("only %d row(s) returned", len(r.Rows)),
			}).Error())
			continue
		}
		if err := matchRow(i, r.Rows[i], want); err != nil {
			r.AddFailure(err.Error())
		}
	}
}

// matchArgs compares statement arguments exactly, in order.
func matchArgs(actual, expected []any) error {
	if len(actual) != len(expected) {
		return &AssertionError{
			Field:    "args",
			Expected: fmt.Sprintf("%d argument(s): %v", len(expected), expected),
			Actual:   fmt.Sprintf("%d argument(s): %v", len(actual), actual),
		}
	}
	for i := range expected {
		if !valueEqual(actual[i], expected[i]) {
			return &AssertionError{
				Field:    fmt.Sprintf("args[%d]", i),
				Expected: fmt.Sprintf("%v (%T)", expected[i], expected[i]),
				Actual:   fmt.Sprintf("%v (%T)", actual[i], actual[i]),
			}
		}
	}
	return nil
}

// matchRow checks that every expected field is present on the actual
// row with an equal value. Fields not named are ignored.
func matchRow(index int, actual, expected map[string]any) error {
	for field, want := range expected {
		got, ok := actual[field]
		if !ok {
			return &AssertionError{
				Field:    fmt.Sprintf("rows[%d].%s", index, field),
				Expected: fmt.Sprintf("%v", want),
				Actual:   "field absent",
			}
		}
		if !valueEqual(got, want) {
			return &AssertionError{
				Field:    fmt.Sprintf("rows[%d].%s", index, field),
				Expected: fmt.Sprintf("%v (%T)", want, want),
				Actual:   fmt.Sprintf("%v (%T)", got, got),
			}
		}
	}
	return nil
}

// valueEqual compares a pipeline value against a YAML-parsed expected
// value. Numeric widths are normalized, so an int64 from the store
// matches a YAML int.
func valueEqual(actual, expected any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if ef, eok := asFloat(expected); eok {
		af, aok := asFloat(actual)
		return aok && af == ef
	}

	switch e := expected.(type) {
	case string:
		a, ok := actual.(string)
		return ok && a == e
	case bool:
		a, ok := actual.(bool)
		return ok && a == e
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !valueEqual(a[i], e[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range e {
			av, present := a[k]
			if !present || !valueEqual(av, v) {
				return false
			}
		}
		return true
	default:
		// time.Time, uuid.UUID and friends compare through their
		// string forms.
		return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
