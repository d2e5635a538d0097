package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"stockcore/pkg/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected by the engine (invariant, cycle, rule) or unhealthy
	ExitCommandError = 2 // Bad input, unknown ids, config or storage errors
)

// ExitError carries the process exit code for a failed command.
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode maps engine errors onto stable codes and exit codes.
func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation", ExitCommandError
	case errors.Is(err, domain.ErrNotFound):
		return "not_found", ExitCommandError
	case errors.Is(err, domain.ErrCycleDetected):
		return "cycle_detected", ExitFailure
	case errors.Is(err, domain.ErrBlockedByRule):
		return "blocked_by_rule", ExitFailure
	case errors.Is(err, domain.ErrInvariant):
		return "invariant", ExitFailure
	default:
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return "command", exitErr.Code
		}
		return "internal", ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Response is the JSON envelope of every command.
type Response struct {
	Status   string             `json:"status"`
	Data     any                `json:"data,omitempty"`
	Warnings []domain.Violation `json:"warnings,omitempty"`
	Error    *ResponseError     `json:"error,omitempty"`
}

// ResponseError is the error body of a JSON response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any, warnings []domain.Violation) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data, Warnings: warnings})
	}
	if err := renderText(f.Writer, data); err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(f.Writer, "warning [%s]: %s\n", w.Rule, w.Message)
	}
	return nil
}

// Error outputs err and returns it as an ExitError.
func (f *OutputFormatter) Error(err error) error {
	code, exit := errorCode(err)
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: &ResponseError{Code: code, Message: err.Error()}})
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return WrapExitError(exit, code, err)
}
