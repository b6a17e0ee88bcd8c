package harness

// Result is the outcome of one scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every expect clause matched.
	Pass bool `json:"pass"`

	// Container is the store container the query ran against.
	Container string `json:"container,omitempty"`

	// SQL is the generated parameterized statement.
	SQL string `json:"sql,omitempty"`

	// Args are the statement arguments, in placeholder order.
	Args []any `json:"args,omitempty"`

	// Rows are the materialized result rows, in result order.
	Rows []map[string]any `json:"rows"`

	// Err holds the query error message when translation or
	// execution failed. Scenarios can expect this.
	Err string `json:"error,omitempty"`

	// Failures lists expectation mismatches. Empty if Pass is true.
	Failures []string `json:"failures,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass: true,
		Rows: []map[string]any{},
	}
}

// AddFailure records an expectation mismatch and marks the result failed.
func (r *Result) AddFailure(msg string) {
	r.Failures = append(r.Failures, msg)
	r.Pass = false
}
