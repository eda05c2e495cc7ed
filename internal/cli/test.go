package cli

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tsql2/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // rewrite golden traces
	Filter string // glob over scenario file names
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string               `json:"name"`
	Pass   bool                 `json:"pass"`
	Golden harness.GoldenStatus `json:"golden,omitempty"`
	Errors []string             `json:"errors,omitempty"`
}

// TestResult summarises a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run the YAML conformance scenarios found under a directory.

Each scenario runs against a fresh in-memory database and must satisfy
its expect clauses and assertions. When golden/<name>.golden exists next
to the scenario, the trace of physical SQL must match it as well.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  tsql2 test ./scenarios
  tsql2 test ./scenarios --filter "state_*"
  tsql2 test ./scenarios --update
  tsql2 test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden traces from this run")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenario files whose name matches this glob")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return WrapExitError(ExitCommandError, "scenarios directory not found", err)
	}
	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	r := newReporter(cmd, opts.RootOptions)
	result := TestResult{Scenarios: []ScenarioResult{}, Total: len(files)}
	for _, file := range files {
		sr := checkScenario(opts, file)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
		if !r.json {
			printScenario(r.w, sr)
		}
	}

	if result.Failed == 0 {
		return r.ok(result, func(w io.Writer) {
			if result.Total == 0 {
				fmt.Fprintln(w, "No scenarios found.")
				return
			}
			fmt.Fprintf(w, "\n%d passed, %d total\n✓ All scenarios passed\n", result.Passed, result.Total)
		})
	}

	summary := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if r.json {
		if err := r.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: "scenario_failed", Message: summary},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(r.w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}
	return NewExitError(ExitFailure, summary)
}

// checkScenario runs one scenario file and checks or rewrites its golden
// trace.
func checkScenario(opts *TestOptions, file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{Name: filepath.Base(file), Errors: []string{err.Error()}}
	}
	sr := ScenarioResult{Name: scenario.Name}

	var runOpts []harness.Option
	if opts.logger != nil {
		runOpts = append(runOpts, harness.WithLogger(opts.logger))
	}
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Errors = append(sr.Errors, result.Errors...)

	golden := harness.GoldenPath(file)
	if opts.Update {
		err = harness.UpdateGolden(golden, scenario.Name, result)
		sr.Golden = harness.GoldenUpdated
	} else {
		sr.Golden, err = harness.CheckGolden(golden, scenario.Name, result)
	}
	if err != nil {
		sr.Errors = append(sr.Errors, err.Error())
	}
	sr.Pass = result.Pass && len(sr.Errors) == 0
	return sr
}

func printScenario(w io.Writer, sr ScenarioResult) {
	if !sr.Pass {
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	if sr.Golden == harness.GoldenUpdated {
		fmt.Fprintf(w, "✓ %s (golden updated)\n", sr.Name)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", sr.Name)
}

// findScenarioFiles lists the .yaml and .yml files under dir whose base
// name, without extension, matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(d.Name(), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}
