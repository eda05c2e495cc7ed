package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tsql2/internal/store"
	"github.com/roach88/tsql2/internal/temporal"
)

// DefaultNow is the clock reading scenarios start from unless they set now.
const DefaultNow = "2024-06-01 12:00:00"

// Scenario defines a conformance test scenario: statements run against a
// fresh database with a fixed clock, then the trace and final state are
// checked.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now is the initial clock reading, a TSQL2 date literal.
	Now string `yaml:"now,omitempty"`

	// Driver selects the SQLite driver: sqlite3 (default) or sqlite.
	Driver string `yaml:"driver,omitempty"`

	// Setup statements run before the flow and must succeed. They are not
	// traced.
	Setup []string `yaml:"setup,omitempty"`

	// Flow contains the traced statements.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// FlowStep runs one statement. Exactly one of Exec and Query is set.
type FlowStep struct {
	// Advance moves the clock forward before the statement (e.g. "24h").
	Advance string `yaml:"advance,omitempty"`

	Exec  string `yaml:"exec,omitempty"`
	Query string `yaml:"query,omitempty"`

	// Expect specifies the expected outcome. If nil the statement must
	// succeed and nothing else is checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Statement returns the step's TSQL2 text.
func (s FlowStep) Statement() string {
	if s.Query != "" {
		return s.Query
	}
	return s.Exec
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Error is the expected error kind (see ErrorKind). Empty means the
	// statement must succeed.
	Error string `yaml:"error,omitempty"`

	// Statements is the expected number of physical statements.
	Statements int `yaml:"statements,omitempty"`

	// Columns and Rows are matched exactly for queries.
	Columns []string   `yaml:"columns,omitempty"`
	Rows    [][]string `yaml:"rows,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a physical statement contains SQL
	// - "trace_order": the Sequence fragments appear in order
	// - "trace_count": step Step produced Count physical statements
	// - "final_state": Query returns exactly Rows
	Type string `yaml:"type"`

	// SQL is the fragment searched for (trace_contains).
	SQL string `yaml:"sql,omitempty"`

	// Sequence lists fragments in their expected order (trace_order).
	Sequence []string `yaml:"sequence,omitempty"`

	// Step is a 1-based flow step (trace_count; optional for trace_contains).
	Step int `yaml:"step,omitempty"`

	// Count is the expected number of physical statements (trace_count).
	Count int `yaml:"count,omitempty"`

	// Query is a TSQL2 SELECT (final_state).
	Query string `yaml:"query,omitempty"`

	// Rows are the expected rendered rows (final_state).
	Rows [][]string `yaml:"rows,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
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

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var scenarios []*Scenario
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Now != "" {
		if _, err := temporal.ParseInstant(s.Now); err != nil {
			return fmt.Errorf("now: %w", err)
		}
	}
	switch s.Driver {
	case "", store.DriverSQLite3, store.DriverModernc:
	default:
		return fmt.Errorf("driver must be %s or %s, got %q", store.DriverSQLite3, store.DriverModernc, s.Driver)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if (step.Exec == "") == (step.Query == "") {
			return fmt.Errorf("flow[%d]: exactly one of exec and query is required", i)
		}
		if step.Advance != "" {
			if _, err := time.ParseDuration(step.Advance); err != nil {
				return fmt.Errorf("flow[%d].advance: %w", i, err)
			}
		}
		if e := step.Expect; e != nil {
			if e.Error != "" && !knownErrorKind(e.Error) {
				return fmt.Errorf("flow[%d].expect: unknown error kind %q", i, e.Error)
			}
			if step.Exec != "" && (e.Columns != nil || e.Rows != nil) {
				return fmt.Errorf("flow[%d].expect: columns and rows need a query step", i)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Flow)); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Step < 0 || a.Step > steps {
		return fmt.Errorf("assertions[%d]: step %d out of range 1..%d", index, a.Step, steps)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Sequence) == 0 {
			return fmt.Errorf("assertions[%d]: sequence list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Step == 0 {
			return fmt.Errorf("assertions[%d]: step is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: query is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
