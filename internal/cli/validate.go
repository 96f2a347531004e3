package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/docrun/internal/document"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Document string                     `json:"document"`
	Valid    bool                       `json:"valid"`
	Errors   []document.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Validate a document without running it",
		Long: `Validate a command document against the document schema.

Checks YAML syntax, the schema (version, argument types, delays), duplicate
component ids and parameters, and that every command type is a builtin or
a macro the document defines. All errors are reported with line numbers.

Exit codes:
  0 - Document is valid
  1 - Document has validation errors
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // We handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := readDocument(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, path)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), path)
	}
	formatter.VerboseLog("Validating %s (%d bytes)", path, len(data))

	if errs := document.Validate(path, data); len(errs) > 0 {
		return outputValidationErrors(formatter, path, errs)
	}
	return outputValidateSuccess(formatter, path)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, path string) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Document: path, Valid: true})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
	return nil
}

// outputValidateError outputs a single command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs document validation errors (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, path string, errs []document.ValidationError) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		err := formatter.Encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Document: path, Valid: false, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		})
		if err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintf(formatter.Writer, "✗ Validation failed: %s\n", path)
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failed
}
