package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/deskquery/internal/config"
)

// ValidationIssue is one configuration problem.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Path   string            `json:"path,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration file",
		Long: `Decode a configuration file over the built-in defaults and check it
against the configuration schema. Without an argument the file named by
--config is checked, or the built-in defaults when there is none.

Exit codes:
  0 - Configuration valid
  1 - Configuration invalid
  2 - Command error (file not found)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if path == "" {
		formatter.VerboseLog("No config file given, checking built-in defaults")
	}

	cfg, err := config.Load(path)
	if err != nil {
		var ce *config.ConfigError
		if !errors.As(err, &ce) {
			return outputValidateError(formatter, ErrCodeGeneric, err.Error())
		}
		if ce.Code == config.ErrCodeNotFound {
			return outputValidateError(formatter, ce.Code, ce.Error())
		}
		return outputValidationErrors(formatter, path, []ValidationIssue{{
			Code:    ce.Code,
			Message: ce.Message,
			Line:    getLineFromCuePos(ce.Pos),
		}})
	}

	formatter.VerboseLog("%d field(s), %d boolean field(s), %d class(es), store driver %s",
		len(cfg.Fields), len(cfg.BooleanFields), len(cfg.Classes), cfg.Store.Driver)

	return outputValidateSuccess(formatter, path)
}

// getLineFromCuePos extracts line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, path string) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Path: path})
	}

	if path == "" {
		fmt.Fprintln(formatter.Writer, "✓ Built-in configuration valid")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "✓ %s valid\n", path)
	return nil
}

// outputValidateError outputs an error that prevented validation.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Unreadable configuration is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, message)
}

// outputValidationErrors outputs the problems found in a configuration.
func outputValidationErrors(formatter *OutputFormatter, path string, issues []ValidationIssue) error {
	if formatter.JSON() {
		result := ValidationResult{Valid: false, Path: path, Errors: issues}
		if err := formatter.Failure(ErrCodeConfig, "configuration invalid", result); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		for _, issue := range issues {
			if issue.Line > 0 {
				fmt.Fprintf(formatter.Writer, "  [%s] line %d: %s\n", issue.Code, issue.Line, issue.Message)
			} else {
				fmt.Fprintf(formatter.Writer, "  [%s] %s\n", issue.Code, issue.Message)
			}
		}
	}

	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(issues)))
}
