package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

var coalesceTable = regexp.MustCompile(`_COALESCE_[0-9a-f]{32}`)

// MarshalTrace renders the trace of a result one line per item:
//
//	scenario: <name>
//	[1] <statement>
//	  kind: DML
//	  sql: <physical statement>
//	  columns: a | VALID
//	  row: 1 | 2000-01-01 00:00:00 - NOW
//	  error: unknown_table
//
// Coalescing table names are numbered in order of appearance so the output
// is stable.
func MarshalTrace(name string, result *Result) []byte {
	names := map[string]string{}
	stable := func(s string) string {
		return coalesceTable.ReplaceAllStringFunc(s, func(m string) string {
			if n, ok := names[m]; ok {
				return n
			}
			n := fmt.Sprintf("_COALESCE_%d", len(names)+1)
			names[m] = n
			return n
		})
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	for _, ev := range result.Trace {
		fmt.Fprintf(&buf, "[%d] %s\n", ev.Seq, oneLine(ev.Statement))
		if ev.Kind != "" {
			fmt.Fprintf(&buf, "  kind: %s\n", ev.Kind)
		}
		for _, stmt := range ev.Physical {
			fmt.Fprintf(&buf, "  sql: %s\n", stable(stmt))
		}
		if ev.Columns != nil {
			fmt.Fprintf(&buf, "  columns: %s\n", strings.Join(ev.Columns, " | "))
		}
		for _, row := range ev.Rows {
			fmt.Fprintf(&buf, "  row: %s\n", strings.Join(row, " | "))
		}
		if ev.Error != "" {
			fmt.Fprintf(&buf, "  error: %s\n", ev.Error)
		}
	}
	return []byte(buf.String())
}

// oneLine collapses runs of whitespace, so multi-line statements from YAML
// block scalars render on one line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// GoldenStatus says how a trace compared with its golden file.
type GoldenStatus string

const (
	GoldenMatched GoldenStatus = "matched"
	GoldenMissing GoldenStatus = "missing"
	GoldenUpdated GoldenStatus = "updated"
)

// GoldenMismatchError reports the first line where a trace departs from
// its golden file.
type GoldenMismatchError struct {
	Path string
	Line int
	Want string
	Got  string
}

func (e *GoldenMismatchError) Error() string {
	return fmt.Sprintf("golden file mismatch at %s:%d: want %q, got %q (run with --update to regenerate)",
		e.Path, e.Line, e.Want, e.Got)
}

// GoldenPath returns golden/<name>.golden beside a scenario file.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// UpdateGolden writes the trace of result to path.
func UpdateGolden(path, name string, result *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	if err := os.WriteFile(path, MarshalTrace(name, result), 0644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}

// CheckGolden compares the trace of result with the file at path. A missing
// file is not an error; scenarios without one rely on their assertions.
func CheckGolden(path, name string, result *Result) (GoldenStatus, error) {
	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return GoldenMissing, nil
	}
	if err != nil {
		return "", fmt.Errorf("read golden file: %w", err)
	}
	got := MarshalTrace(name, result)
	if bytes.Equal(want, got) {
		return GoldenMatched, nil
	}

	wl := strings.Split(string(want), "\n")
	gl := strings.Split(string(got), "\n")
	i := 0
	for i < len(wl) && i < len(gl) && wl[i] == gl[i] {
		i++
	}
	mismatch := &GoldenMismatchError{Path: path, Line: i + 1}
	if i < len(wl) {
		mismatch.Want = wl[i]
	}
	if i < len(gl) {
		mismatch.Got = gl[i]
	}
	return "", mismatch
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, MarshalTrace(scenarioName, result))
}
