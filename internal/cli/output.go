package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tsql2/internal/harness"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a statement or scenario failed
	ExitCommandError = 2 // bad flags, unreadable input, unreachable database
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of --format json output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failure. Code is the error kind scenarios expect,
// e.g. "unknown_table".
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// reporter writes a command's outcome as text or as a CLIResponse.
type reporter struct {
	json bool
	w    io.Writer
}

func newReporter(cmd *cobra.Command, opts *RootOptions) *reporter {
	return &reporter{json: opts.Format == "json", w: cmd.OutOrStdout()}
}

// ok reports success. text renders data in text mode and may be nil.
func (r *reporter) ok(data any, text func(w io.Writer)) error {
	if r.json {
		return r.encode(CLIResponse{Status: "ok", Data: data})
	}
	if text != nil {
		text(r.w)
	}
	return nil
}

// fail reports a failed statement and returns the exit error for it.
// details carry the partial results, if any.
func (r *reporter) fail(message string, err error, details any) error {
	if r.json {
		resp := CLIResponse{Status: "error", Error: &CLIError{
			Code:    harness.ErrorKind(err),
			Message: err.Error(),
			Details: details,
		}}
		if werr := r.encode(resp); werr != nil {
			return werr
		}
	}
	return WrapExitError(ExitFailure, message, err)
}

func (r *reporter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
