package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <statement>",
		Short: "Print the SQL a TSQL2 statement translates into",
		Long: `Translate one TSQL2 statement and print the physical SQL without
running it.

Translation reads the catalog of the database, so --dsn is required.
Nothing is changed: surrogate allocations and coalescing tables are
rolled back.

Examples:
  tsql2 translate --dsn app.db "DELETE FROM emp VALID PERIOD [2021-01-01 - 2022-01-01]"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runTranslate(cmd *cobra.Command, opts *RootOptions, text string) error {
	sess, closeFn, err := openSession(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer closeFn()

	r := newReporter(cmd, opts)
	res, err := sess.Translate(cmd.Context(), text)
	if err != nil {
		return r.fail("translation failed", err, nil)
	}
	return r.ok(statementResult(res), func(w io.Writer) {
		fmt.Fprintf(w, "-- %s\n", res.Kind)
		for _, stmt := range res.Statements {
			fmt.Fprintf(w, "%s;\n", stmt)
		}
	})
}
