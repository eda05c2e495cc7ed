package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tsql2/internal/session"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Debug bool // show system columns
}

// QueryResult is the JSON form of a query's rows.
type QueryResult struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <select>",
		Short: "Run a TSQL2 query and print its rows",
		Long: `Run a TSQL2 SELECT and print its rows.

Valid-time periods are printed as "begin - end"; open-ended periods end
in NOW. Timestamp columns are hidden unless --debug is given.

Examples:
  tsql2 query --dsn app.db "SELECT name, VALID(e) FROM emp e"
  tsql2 query --dsn app.db "SELECT name FROM emp(name)" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "include timestamp columns in the output")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions, text string) error {
	ctx := cmd.Context()
	sess, closeFn, err := openSession(ctx, opts.RootOptions, session.WithDebug(opts.Debug))
	if err != nil {
		return err
	}
	defer closeFn()

	r := newReporter(cmd, opts.RootOptions)
	result, err := collectRows(cmd, sess, text)
	if err != nil {
		return r.fail("query failed", err, nil)
	}
	return r.ok(result, func(w io.Writer) {
		fmt.Fprintln(w, strings.Join(result.Columns, " | "))
		for _, row := range result.Rows {
			fmt.Fprintln(w, strings.Join(row, " | "))
		}
		fmt.Fprintf(w, "(%d rows)\n", len(result.Rows))
	})
}

func collectRows(cmd *cobra.Command, sess *session.Session, text string) (*QueryResult, error) {
	rs, err := sess.Query(cmd.Context(), text)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	result := &QueryResult{Columns: rs.Labels(), Rows: [][]string{}}
	for rs.Next() {
		row, err := rs.Strings()
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return result, rs.Close()
}
