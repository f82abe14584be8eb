package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// CLIResponse is the JSON document written to stdout with --format json.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command in a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// CLIError codes.
const (
	CodeUnknownSuite = "E001"
	CodeEnvironment  = "E002"
	CodeTestsFailed  = "E003"
)

// OutputFormatter routes command output by format. In text mode the
// runner's report is the output; in JSON mode the report goes to
// ErrWriter and Writer receives exactly one CLIResponse.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
}

func (f *OutputFormatter) json() bool { return f.Format == "json" }

// Success writes an "ok" response. Text mode writes nothing.
func (f *OutputFormatter) Success(data any) error {
	if !f.json() {
		return nil
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

// Error writes an "error" response, or one diagnostic line in text mode.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if !f.json() {
		_, err := fmt.Fprintf(f.GetErrWriter(), "Error [%s]: %s\n", code, message)
		return err
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{
		Status: "error",
		Error:  &CLIError{Code: code, Message: message, Details: details},
	})
}

// jsonError is Error in JSON mode and a no-op in text mode, where main
// prints the returned error instead.
func (f *OutputFormatter) jsonError(code, message string, details any) {
	if f.json() {
		_ = f.Error(code, message, details)
	}
}

// GetErrWriter returns ErrWriter, falling back to Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// RunnerWriter returns where the runner's text report goes.
func (f *OutputFormatter) RunnerWriter() io.Writer {
	if f.json() {
		return f.GetErrWriter()
	}
	return f.Writer
}

// LogWriter returns where verbose log lines are mirrored: stdout in text
// mode, ErrWriter in json mode so stdout carries only the response.
func (f *OutputFormatter) LogWriter() io.Writer {
	return f.RunnerWriter()
}
