// Package harness provides a scenario-driven conformance harness for
// the query pipeline.
//
// A scenario bundles an inline CUE model, seed rows, one YAML query
// description, and an expectation over the generated SQL and the
// materialized results. Each run compiles the model, creates a fresh
// in-memory SQLite database, seeds it, translates and executes the
// query, and evaluates the expectation.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	model: |
//	  entities: Customer: {
//	    container: "customers"
//	    properties: {
//	      Id:   {type: "int", storeName: "id"}
//	      Name: {type: "string", storeName: "name"}
//	    }
//	  }
//	seed:
//	  customers:
//	    - {id: 1, name: "Ada"}
//	query:
//	  entity: Customer
//	  where:
//	    - {property: Name, op: eq, value: "Ada"}
//	expect:
//	  sql: "SELECT id AS Id, name AS Name FROM customers WHERE (name = ?)"
//	  args: ["Ada"]
//	  count: 1
//	  rows:
//	    - {Name: "Ada"}
//
// Expectations are subset matches: only the fields named in an expected
// row are compared, positionally against the actual result rows.
//
// # Golden Files
//
// RunWithGolden additionally serializes a deterministic snapshot of the
// run (container, SQL, arguments, result rows) and compares it against
// testdata/golden/{name}.golden via goldie. Regenerate with:
//
//	go test ./internal/harness -update
package harness
