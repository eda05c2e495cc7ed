package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/roach88/tsql2/internal/store"
)

// envPrefix prefixes the environment variables bound to flags, e.g.
// --dialect-file is read from TSQL2_DIALECT_FILE.
const envPrefix = "TSQL2"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	Config      string
	Driver      string
	DSN         string
	Dialect     string
	DialectFile string
	Cache       int

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tsql2 CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tsql2",
		Short: "tsql2 - bitemporal SQL translator",
		Long: `Run TSQL2 statements against an ordinary SQL database.

Temporal tables, periods and coalescing are rewritten into plain SQL over
timestamp columns, executed through a SQLite or PostgreSQL driver.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd.Flags(), opts.Config); err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.logger = newLogger(cmd, opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default ./tsql2.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", store.DriverSQLite3, "database driver (sqlite3|sqlite|pgx)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "data source name, e.g. a SQLite file path")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect preset (default follows the driver)")
	cmd.PersistentFlags().StringVar(&opts.DialectFile, "dialect-file", "", "CUE file describing the SQL dialect")
	cmd.PersistentFlags().IntVar(&opts.Cache, "cache", 0, "descriptor cache size in tables (0 disables)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// loadConfig fills unset flags from the config file and TSQL2_ environment
// variables. Explicit flags win.
func loadConfig(fs *pflag.FlagSet, path string) error {
	v := viper.New()
	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	} else {
		v.SetConfigName("tsql2")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return err
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if strings.Contains(f.Name, "-") {
			suffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			err = multierr.Append(err, v.BindEnv(f.Name, envPrefix+"_"+suffix))
		}
		if !f.Changed && v.IsSet(f.Name) {
			err = multierr.Append(err, fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))))
		}
	})
	return err
}

// newLogger writes text logs to stderr; --verbose lowers the level to debug.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
