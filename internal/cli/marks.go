package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MarksOptions holds flags for the marks command.
type MarksOptions struct {
	*RootOptions
	Database string
	Reset    bool
}

// MarkEntry is one passed save mark.
type MarkEntry struct {
	File string `json:"file"`
	Mark string `json:"mark"`
	Seq  int64  `json:"seq"`
}

// MarksResult is the marks command output.
type MarksResult struct {
	Marks   []MarkEntry `json:"marks"`
	Removed int64       `json:"removed,omitempty"`
}

// NewMarksCommand creates the marks command.
func NewMarksCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MarksOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "marks [file]",
		Short: "List or reset read save marks",
		Long: `List the save marks recorded as read, in the order they were first
passed. A file argument limits the listing to one script. With --reset the
matching marks are deleted instead.

Example:
  novella marks --db ./novella.db
  novella marks --db ./novella.db chapter1.yaml --reset`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			return runMarks(opts, file, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "delete the matching marks")

	return cmd
}

func runMarks(opts *MarksOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	project, err := loadProject(opts.RootOptions, Overrides{Database: opts.Database}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer project.Close()

	if err := project.requireDatabase(); err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return err
	}
	st, err := project.OpenStore()
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	result := MarksResult{Marks: []MarkEntry{}}

	if opts.Reset {
		n, err := st.ResetMarks(ctx, file)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to reset marks", err)
		}
		result.Removed = n
		project.Logger.Info("marks reset", "file", file, "removed", n)
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "Removed %d mark(s)\n", n)
		return nil
	}

	marks, err := st.PassedMarks(ctx, file)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list marks", err)
	}
	for _, m := range marks {
		result.Marks = append(result.Marks, MarkEntry{File: m.FilePath, Mark: m.MarkName, Seq: m.Seq})
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if len(result.Marks) == 0 {
		fmt.Fprintln(formatter.Writer, "No marks passed.")
		return nil
	}
	for _, m := range result.Marks {
		fmt.Fprintf(formatter.Writer, "%4d  %s#%s\n", m.Seq, m.File, m.Mark)
	}
	return nil
}
