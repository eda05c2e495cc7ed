// Package harness runs TSQL2 conformance scenarios.
//
// A scenario is a list of statements run against a fresh in-memory database
// with a mock clock. Each flow statement is traced with the physical SQL it
// was translated into, and for queries the rendered rows. Traces are compared
// against golden files and checked by assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: state_delete
//	description: "Deleting the middle of a version splits it"
//	now: "2024-06-01 12:00:00"
//	setup:
//	  - CREATE TABLE t (id INT) AS VALID STATE
//	  - INSERT INTO t VALUES (1) VALID PERIOD [2000-01-01 - 2005-01-01]
//	flow:
//	  - exec: DELETE FROM t VALID PERIOD [2002-01-01 - 2003-01-01]
//	    expect:
//	      statements: 4
//	  - advance: 24h
//	    query: SELECT id FROM t ORDER BY VALID(t)
//	    expect:
//	      rows:
//	        - ["1", "2000-01-01 00:00:00 - 2002-01-01 00:00:00"]
//	        - ["1", "2003-01-01 00:00:00 - 2005-01-01 00:00:00"]
//	  - exec: INSERT INTO missing VALUES (1)
//	    expect:
//	      error: unknown_table
//	assertions:
//	  - type: trace_contains
//	    step: 1
//	    sql: "DELETE FROM t WHERE"
//	  - type: final_state
//	    query: SELECT id FROM t
//	    rows: [...]
//
// # Assertion Types
//
//   - trace_contains: a physical statement contains a fragment
//   - trace_order: fragments match physical statements in order
//   - trace_count: a step produced exactly N physical statements
//   - final_state: a TSQL2 query returns exactly the given rows
//
// # Deterministic Testing
//
// The clock only moves when a step says advance, and coalescing table names
// are normalised in golden output, so traces are identical across runs.
package harness
