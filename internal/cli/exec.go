package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tsql2/internal/translate"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	File    string // script file, "-" for stdin
	ShowSQL bool   // print the physical statements
}

// StatementResult is the JSON form of one executed statement.
type StatementResult struct {
	Kind       string   `json:"kind"`
	Statements []string `json:"statements,omitempty"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec [statements]",
		Short: "Execute TSQL2 statements",
		Long: `Execute one or more TSQL2 statements separated by semicolons.

Each statement runs in its own transaction. Execution stops at the first
failing statement; the statements before it stay committed.

Examples:
  tsql2 exec --dsn app.db "CREATE TABLE emp (name TEXT) AS VALID STATE"
  tsql2 exec --dsn app.db "INSERT INTO emp VALUES ('Ann') VALID PERIOD [2020-01-01 - FOREVER]"
  tsql2 exec --dsn app.db --file schema.tsql2`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read statements from a file (- for stdin)")
	cmd.Flags().BoolVar(&opts.ShowSQL, "show-sql", false, "print the physical SQL of each statement")

	return cmd
}

func runExec(cmd *cobra.Command, opts *ExecOptions, args []string) error {
	script, err := readScript(cmd, opts.File, args)
	if err != nil {
		return err
	}

	sess, closeFn, err := openSession(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeFn()

	results, execErr := sess.ExecScript(cmd.Context(), script)

	out := make([]StatementResult, 0, len(results))
	for _, res := range results {
		out = append(out, statementResult(res))
	}

	list := func(w io.Writer) {
		for _, res := range out {
			fmt.Fprintf(w, "OK %s (%d statements)\n", res.Kind, len(res.Statements))
			if opts.ShowSQL {
				for _, stmt := range res.Statements {
					fmt.Fprintf(w, "  %s;\n", stmt)
				}
			}
		}
	}
	r := newReporter(cmd, opts.RootOptions)
	if execErr == nil {
		return r.ok(out, list)
	}
	// In text mode the statements that succeeded are still listed.
	if !r.json {
		list(r.w)
	}
	return r.fail(fmt.Sprintf("statement %d failed", len(results)+1), execErr, out)
}

// readScript returns the statement text from --file or the argument.
func readScript(cmd *cobra.Command, file string, args []string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", NewExitError(ExitCommandError, "give statements either as an argument or with --file, not both")
	case file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read script", err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	}
	return "", NewExitError(ExitCommandError, "no statements given")
}

func statementResult(res *translate.Result) StatementResult {
	return StatementResult{Kind: res.Kind.String(), Statements: res.Statements}
}
