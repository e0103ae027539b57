package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/recpurge/internal/deleter"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Every record ended in an acceptable state
	ExitFailure      = 1 // At least one record failed (or was missing under missing_policy: fail)
	ExitCommandError = 2 // Command error (bad config, query failure, journal unavailable, etc.)
)

// Error codes reported in text and JSON error output.
const (
	ErrCodeConfig   = "E_CONFIG"    // Configuration could not be loaded or is invalid
	ErrCodeQuery    = "E_QUERY"     // Enumeration query failed
	ErrCodeJournal  = "E_JOURNAL"   // Journal database unavailable
	ErrCodeBackend  = "E_BACKEND"   // Backend could not be constructed
	ErrCodeNotFound = "E_NOT_FOUND" // Requested run does not exist
	ErrCodeFailures = "E_FAILURES"  // Run finished with failed records
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitCommandError if the error is not an
// ExitError (flag parsing and argument errors from cobra).
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E_CONFIG", "E_QUERY", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// commandError reports err under code and returns it as a command error.
func commandError(f *OutputFormatter, code, message string, err error) error {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	_ = f.Error(code, msg, nil)
	return WrapExitError(ExitCommandError, code+": "+message, err)
}

// writeSummary prints the text summary of a run: the counts block, then one
// line per unsuccessful record sorted by id.
func writeSummary(w io.Writer, r *deleter.Report) {
	fmt.Fprintf(w, "run %s\n", r.RunID)
	fmt.Fprintf(w, "record type: %s\n", r.RecordType)
	fmt.Fprintf(w, "enumerated: %d\n", r.Counts.Enumerated)
	fmt.Fprintf(w, "deleted: %d\n", r.Counts.Deleted)
	fmt.Fprintf(w, "missing: %d\n", r.Counts.Missing)
	fmt.Fprintf(w, "failed: %d\n", r.Counts.Failed)
	fmt.Fprintf(w, "skipped: %d\n", r.Counts.Skipped)
	if r.Truncated {
		fmt.Fprintln(w, "truncated: more records remain, run again")
	}
	for _, o := range r.Failures() {
		fmt.Fprintf(w, "failed %s: %s\n", o.ID, o.Error)
	}
}
