package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// InitResult is the JSON form of the init command's output.
type InitResult struct {
	Driver  string `json:"driver"`
	DSN     string `json:"dsn"`
	Dialect string `json:"dialect"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the temporal catalog tables",
		Long: `Create the catalog tables that describe temporal tables.

Every command does this on first use; init only makes it explicit.
Running it on an initialised database changes nothing.

Examples:
  tsql2 init --dsn app.db
  tsql2 init --driver pgx --dsn postgres://localhost/app`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closeFn, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer closeFn()

			result := InitResult{
				Driver:  rootOpts.Driver,
				DSN:     rootOpts.DSN,
				Dialect: sess.Catalog().Dialect().Name,
			}
			return newReporter(cmd, rootOpts).ok(result, func(w io.Writer) {
				fmt.Fprintf(w, "✓ catalog ready (%s, %s dialect)\n", result.DSN, result.Dialect)
			})
		},
	}
	return cmd
}
