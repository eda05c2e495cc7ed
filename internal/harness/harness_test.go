package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 4)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Flow: []FlowStep{
			{Exec: "CREATE TABLE t (a INT)"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, 1, result.Trace[0].Seq)
	assert.Equal(t, "DDL", result.Trace[0].Kind)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected",
		Description: "A failing statement without expect.error fails the scenario",
		Flow: []FlowStep{
			{Exec: "INSERT INTO missing VALUES (1)"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, ErrUnknownTable, result.Trace[0].Error)
}

func TestRun_ExpectMismatches(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Every kind of expect mismatch is reported",
		Setup:       []string{"CREATE TABLE t (a INT) AS VALID STATE"},
		Flow: []FlowStep{
			{
				Exec:   "INSERT INTO t VALUES (1) VALID PERIOD [2000-01-01 - 2001-01-01]",
				Expect: &ExpectClause{Statements: 3},
			},
			{
				Exec:   "INSERT INTO t VALUES (2) VALID PERIOD [2000-01-01 - 2001-01-01]",
				Expect: &ExpectClause{Error: ErrDuplicateKey},
			},
			{
				Query:  "SELECT a FROM t",
				Expect: &ExpectClause{Columns: []string{"a"}, Rows: [][]string{{"9"}}},
			},
			{
				Exec:   "DELETE FROM t",
				Expect: &ExpectClause{Error: ErrSyntax},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5, strings.Join(result.Errors, "\n"))
	assert.Contains(t, result.Errors[0], "expected 3 physical statements, got 1")
	assert.Contains(t, result.Errors[1], "expected duplicate_key error, statement succeeded")
	assert.Contains(t, result.Errors[2], "expected columns [a]")
	assert.Contains(t, result.Errors[3], "expected rows [[9]]")
	assert.Contains(t, result.Errors[4], "expected syntax error, statement succeeded")
}

func TestRun_AdvanceMovesClock(t *testing.T) {
	scenario := &Scenario{
		Name:        "advance",
		Description: "Each advance moves transaction time forward",
		Now:         "2024-06-01 12:00:00",
		Setup:       []string{"CREATE TABLE acct (id INT, bal INT) AS TRANSACTION"},
		Flow: []FlowStep{
			{Exec: "INSERT INTO acct VALUES (1, 50)"},
			{Advance: "1h", Exec: "UPDATE acct SET bal = 60 WHERE id = 1"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Step: 1, SQL: "1717243200, 253402300800"},
			{Type: AssertTraceContains, Step: 2, SQL: "SET _TTE = 1717246800"},
			{Type: AssertTraceCount, Step: 2, Count: 4},
			{Type: AssertFinalState, Query: "SELECT bal FROM acct", Rows: [][]string{{"60"}}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRun_SetupFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_setup",
		Description: "Setup must succeed",
		Setup:       []string{"INSERT INTO missing VALUES (1)"},
		Flow:        []FlowStep{{Exec: "CREATE TABLE t (a INT)"}},
	}

	_, err := Run(scenario)
	assert.ErrorContains(t, err, "setup[0]")
}

func TestAssertions_Failures(t *testing.T) {
	trace := []TraceEvent{
		{Seq: 1, Statement: "DELETE FROM t", Physical: []string{"UPDATE a", "DELETE b"}},
		{Seq: 2, Statement: "DELETE FROM u", Physical: []string{"DELETE c"}},
	}

	assert.NoError(t, assertTraceContains(trace, Assertion{SQL: "DELETE c"}))
	assert.Error(t, assertTraceContains(trace, Assertion{SQL: "DELETE c", Step: 1}))

	assert.NoError(t, assertTraceOrder(trace, Assertion{Sequence: []string{"UPDATE", "DELETE c"}}))
	err := assertTraceOrder(trace, Assertion{Sequence: []string{"DELETE b", "UPDATE"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[1] DELETE FROM t")

	assert.NoError(t, assertTraceCount(trace, Assertion{Step: 1, Count: 2}))
	assert.Error(t, assertTraceCount(trace, Assertion{Step: 2, Count: 2}))
	assert.Error(t, assertTraceCount(trace, Assertion{Step: 3, Count: 0}))
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: y\nflows: []\n",
			want: "field flows not found",
		},
		{
			name: "missing description",
			yaml: "name: x\nflow:\n  - exec: DROP TABLE t\n",
			want: "description is required",
		},
		{
			name: "empty flow",
			yaml: "name: x\ndescription: y\n",
			want: "flow list is required",
		},
		{
			name: "exec and query",
			yaml: "name: x\ndescription: y\nflow:\n  - exec: DROP TABLE t\n    query: SELECT a FROM t\n",
			want: "exactly one of exec and query",
		},
		{
			name: "bad advance",
			yaml: "name: x\ndescription: y\nflow:\n  - exec: DROP TABLE t\n    advance: soon\n",
			want: "advance",
		},
		{
			name: "unknown error kind",
			yaml: "name: x\ndescription: y\nflow:\n  - exec: DROP TABLE t\n    expect:\n      error: boom\n",
			want: "unknown error kind",
		},
		{
			name: "rows on exec",
			yaml: "name: x\ndescription: y\nflow:\n  - exec: DROP TABLE t\n    expect:\n      rows: [[\"1\"]]\n",
			want: "need a query step",
		},
		{
			name: "bad now",
			yaml: "name: x\ndescription: y\nnow: yesterday\nflow:\n  - exec: DROP TABLE t\n",
			want: "now",
		},
		{
			name: "bad driver",
			yaml: "name: x\ndescription: y\ndriver: pgx\nflow:\n  - exec: DROP TABLE t\n",
			want: "driver",
		},
		{
			name: "trace_count without step",
			yaml: "name: x\ndescription: y\nflow:\n  - exec: DROP TABLE t\nassertions:\n  - type: trace_count\n    count: 1\n",
			want: "step is required",
		},
		{
			name: "step out of range",
			yaml: "name: x\ndescription: y\nflow:\n  - exec: DROP TABLE t\nassertions:\n  - type: trace_contains\n    sql: DROP\n    step: 2\n",
			want: "out of range",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: y\nflow:\n  - exec: DROP TABLE t\nassertions:\n  - type: trace_magic\n",
			want: "unknown assertion type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: file
description: "Loaded from disk"
flow:
  - exec: CREATE TABLE t (a INT)
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "file", s.Name)
	assert.Equal(t, "CREATE TABLE t (a INT)", s.Flow[0].Statement())

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestMarshalTrace_NumbersCoalescingTables(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{
		Statement: "SELECT a\n  FROM c(a)",
		Kind:      "QUERY",
		Physical: []string{
			"SELECT a FROM _COALESCE_0190f2a1b2c37d8e9f0a1b2c3d4e5f60 AS c",
			"SELECT a FROM _COALESCE_0190f2a1b2c37d8e9f0a1b2c3d4e5f61 JOIN _COALESCE_0190f2a1b2c37d8e9f0a1b2c3d4e5f60",
		},
		Columns: []string{"a", "VALID"},
		Rows:    [][]string{{"1", "NULL"}},
	})

	assert.Equal(t, `scenario: s
[1] SELECT a FROM c(a)
  kind: QUERY
  sql: SELECT a FROM _COALESCE_1 AS c
  sql: SELECT a FROM _COALESCE_2 JOIN _COALESCE_1
  columns: a | VALID
  row: 1 | NULL
`, string(MarshalTrace("s", result)))
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/path/to", "golden", "scenario.golden"), GoldenPath("/path/to/scenario.yaml"))
	assert.Equal(t, filepath.Join("scenarios", "golden", "test.golden"), GoldenPath("scenarios/test.yml"))
}

func TestCheckGolden(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Statement: "CREATE TABLE t (a INT)", Kind: "DDL"})
	path := GoldenPath(filepath.Join(t.TempDir(), "s.yaml"))

	status, err := CheckGolden(path, "s", result)
	require.NoError(t, err)
	assert.Equal(t, GoldenMissing, status)

	require.NoError(t, UpdateGolden(path, "s", result))
	status, err = CheckGolden(path, "s", result)
	require.NoError(t, err)
	assert.Equal(t, GoldenMatched, status)

	result.AddTrace(TraceEvent{Statement: "DROP TABLE t", Kind: "DDL"})
	_, err = CheckGolden(path, "s", result)
	var mismatch *GoldenMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.Line)
	assert.Equal(t, "", mismatch.Want)
	assert.Equal(t, "[2] DROP TABLE t", mismatch.Got)
	assert.Contains(t, err.Error(), "--update")
}
