package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/entq/internal/querydesc"
)

// Scenario defines one conformance scenario: a model, seed data, a
// query description, and the expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the
	// golden file when the scenario runs under RunWithGolden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the inline CUE source of the entity model.
	Model string `yaml:"model"`

	// Seed maps container names to the rows inserted before the
	// query runs. Column names are store names; a column absent
	// from a row is seeded NULL.
	Seed map[string][]map[string]any `yaml:"seed,omitempty"`

	// Query is the query description to translate and execute.
	Query querydesc.QueryFile `yaml:"query"`

	// Expect is evaluated against the run outcome.
	Expect Expectation `yaml:"expect"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Model == "" {
		return fmt.Errorf("model is required")
	}

	if s.Query.Entity == "" {
		return fmt.Errorf("query.entity is required")
	}

	for container, rows := range s.Seed {
		if container == "" {
			return fmt.Errorf("seed: container name must be non-empty")
		}
		if len(rows) == 0 {
			return fmt.Errorf("seed[%s]: rows list must be non-empty", container)
		}
		for i, row := range rows {
			if len(row) == 0 {
				return fmt.Errorf("seed[%s][%d]: row must have at least one column", container, i)
			}
		}
	}

	if s.Expect.IsEmpty() {
		return fmt.Errorf("expect must specify at least one of sql, args, count, rows, error")
	}

	return nil
}
