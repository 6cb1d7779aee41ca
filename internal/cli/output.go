package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/quarryhq/quarry/tabular"
	"github.com/quarryhq/quarry/value"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Evaluation failure (coercion errors, callback errors)
	ExitCommandError = 2 // Command error (bad document, unknown field, missing file)
)

// ExitError carries a specific exit code out of a command.
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

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Non-ExitErrors map to
// ExitCommandError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// Error code strings for JSON error responses.
const (
	ErrCodeGeneric    = "E001" // Unknown error
	ErrCodeDocument   = "E002" // Query document parse/shape error
	ErrCodeSource     = "E003" // Source load error (file, database, table)
	ErrCodeDescriptor = "E101" // Invalid selection descriptor
	ErrCodeField      = "E102" // Unknown field
	ErrCodeEval       = "E201" // Evaluation failure
)

// queryErrorCode maps engine errors to response codes.
func queryErrorCode(err error) string {
	switch {
	case tabular.IsConstructionError(err):
		return ErrCodeDescriptor
	case tabular.IsFieldError(err):
		return ErrCodeField
	case tabular.IsEvalError(err):
		return ErrCodeEval
	default:
		return ErrCodeGeneric
	}
}

// Formatter renders command output as text or as a JSON envelope.
type Formatter struct {
	Format  string
	Out     io.Writer
	Err     io.Writer
	Verbose bool
}

// Response is the JSON envelope for all commands.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError is the error payload of a JSON response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK renders a success payload. Text mode prints the payload with Println;
// commands with richer text output render it themselves and pass nil here.
func (f *Formatter) OK(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Out).Encode(Response{Status: "ok", Data: data})
	}
	if data != nil {
		fmt.Fprintln(f.Out, data)
	}
	return nil
}

// Fail renders an error payload.
func (f *Formatter) Fail(code, message string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Out).Encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: message},
		})
	}
	fmt.Fprintf(f.Out, "error [%s]: %s\n", code, message)
	return nil
}

// Result renders a query result: the JSON envelope in json mode, a plain
// human-readable listing in text mode.
func (f *Formatter) Result(res tabular.Result) error {
	if f.Format == "json" {
		return f.OK(tabular.Encode(res))
	}
	renderText(f.Out, res, "")
	return nil
}

// renderText writes a result in display form, one element per line.
// Grouped results render as "key: scalar" lines, or as an indented block
// when the group values are collections.
func renderText(w io.Writer, res tabular.Result, indent string) {
	switch r := res.(type) {
	case *tabular.ScalarResult:
		fmt.Fprintf(w, "%s%s\n", indent, value.Format(r.Value))
	case *tabular.ListResult:
		for _, v := range r.Values {
			fmt.Fprintf(w, "%s%s\n", indent, value.Format(v))
		}
	case *tabular.SetResult:
		for _, v := range r.Values() {
			fmt.Fprintf(w, "%s%s\n", indent, value.Format(v))
		}
	case *tabular.GroupedResult:
		for _, entry := range r.Entries() {
			if scalar, ok := entry.Value.(*tabular.ScalarResult); ok {
				fmt.Fprintf(w, "%s%s: %s\n", indent, value.Format(entry.Key), value.Format(scalar.Value))
				continue
			}
			fmt.Fprintf(w, "%s%s:\n", indent, value.Format(entry.Key))
			renderText(w, entry.Value, indent+"  ")
		}
	}
}
