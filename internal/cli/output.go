package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/QQCPM/ChatChat/internal/apperrors"
)

// Exit codes for chatctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the server or a local store refused the operation
	ExitCommandError = 2 // bad flags or arguments
)

// ExitError carries an exit code out of a command.
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

// NewExitError creates an ExitError with code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// GetExitCode extracts the exit code from an error. Errors that are not an
// ExitError map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope printed with --format json.
type Response struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed command.
type ResponseError struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// output writes command results in the selected format.
type output struct {
	format string
	w      io.Writer
}

func newOutput(opts *RootOptions, cmd *cobra.Command) *output {
	return &output{format: opts.Format, w: cmd.OutOrStdout()}
}

func (o *output) json() bool { return o.format == "json" }

// result prints data as JSON, or calls text for humans.
func (o *output) result(data any, text func(w io.Writer)) error {
	if o.json() {
		return json.NewEncoder(o.w).Encode(Response{Status: "ok", Data: data})
	}
	text(o.w)
	return nil
}

// PrintError reports err the way the selected format expects.
func PrintError(w io.Writer, format string, err error) {
	code := apperrors.CodeOf(err)
	if format == "json" {
		_ = json.NewEncoder(w).Encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: err.Error()},
		})
		return
	}
	if code == apperrors.CodeUnknown {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", code, apperrors.MessageOf(err))
}
