package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/novella/internal/script"
)

// FileReport holds the issues found in one script file.
type FileReport struct {
	Path   string         `json:"path"`
	Issues []script.Issue `json:"issues,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool         `json:"valid"`
	Files    []FileReport `json:"files"`
	Errors   int          `json:"errors"`
	Warnings int          `json:"warnings"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [path...]",
		Short: "Check script files without running them",
		Long: `Parse script files and report problems a run would tolerate but an
author almost certainly did not intend: duplicate or empty labels and save
marks, unbalanced macro/for/if blocks and empty js bodies.

Paths may be files or directories; directories are searched for .yaml and
.yml files. With no paths the project's scripts directory is checked.
Warnings are reported but do not fail validation.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if len(paths) == 0 {
		project, err := loadProject(opts, Overrides{}, cmd.ErrOrStderr())
		if err != nil {
			var exitErr *ExitError
			if errors.As(err, &exitErr) {
				_ = formatter.Error(ErrCodeConfig, exitErr.Error(), nil)
			}
			return err
		}
		defer project.Close()
		paths = []string{project.Config.Scripts}
	}

	files, err := findScriptFiles(paths)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scripts", err)
	}
	if len(files) == 0 {
		msg := "no script files found"
		_ = formatter.Error(ErrCodeNotFound, msg, paths)
		return NewExitError(ExitCommandError, msg)
	}
	formatter.VerboseLog("Found %d script file(s)", len(files))

	result := ValidationResult{Files: make([]FileReport, 0, len(files))}
	for _, path := range files {
		formatter.VerboseLog("Validating %s", path)
		report := validateFile(path)
		for _, is := range report.Issues {
			if is.Severity == script.SeverityError {
				result.Errors++
			} else {
				result.Warnings++
			}
		}
		result.Files = append(result.Files, report)
	}
	result.Valid = result.Errors == 0

	return outputValidation(formatter, result)
}

// validateFile parses and checks one script. A parse failure is reported as
// a single error issue at the failing line.
func validateFile(path string) FileReport {
	report := FileReport{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		report.Issues = []script.Issue{{Severity: script.SeverityError, Message: err.Error()}}
		return report
	}

	tags, err := script.Parse(filepath.ToSlash(path), data)
	if err != nil {
		issue := script.Issue{Severity: script.SeverityError, Message: err.Error()}
		var pe *script.ParseError
		if errors.As(err, &pe) {
			issue.Line = pe.Line
			issue.Message = pe.Message
		}
		report.Issues = []script.Issue{issue}
		return report
	}

	report.Issues = script.Validate(tags)
	return report
}

// findScriptFiles expands paths into a sorted list of script files.
func findScriptFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("path not found: %s", root)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if isScriptFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func isScriptFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// outputValidation prints the result. Any error issue is exit code 1.
func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	var failErr error
	if !result.Valid {
		failErr = NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", result.Errors))
	}

	if formatter.JSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		msg := fmt.Sprintf("%d error(s) in %d file(s)", result.Errors, len(result.Files))
		if err := formatter.Failure(ErrCodeInvalid, msg, result); err != nil {
			return err
		}
		return failErr
	}

	w := formatter.Writer
	for _, f := range result.Files {
		mark := "✓"
		for _, is := range f.Issues {
			if is.Severity == script.SeverityError {
				mark = "✗"
				break
			}
		}
		fmt.Fprintf(w, "%s %s\n", mark, f.Path)
		for _, is := range f.Issues {
			fmt.Fprintf(w, "  %s\n", is)
		}
	}

	fmt.Fprintln(w)
	if result.Valid {
		fmt.Fprintf(w, "✓ All scripts valid (%d warning(s))\n", result.Warnings)
		return nil
	}
	fmt.Fprintf(w, "✗ Validation failed: %d error(s), %d warning(s)\n", result.Errors, result.Warnings)
	return failErr
}
