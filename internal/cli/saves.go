package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/novella/internal/store"
)

// SavesOptions holds flags shared by the saves subcommands.
type SavesOptions struct {
	*RootOptions
	Database  string
	Conductor string
}

// SlotEntry is one save slot as reported by the saves command.
type SlotEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Conductor string `json:"conductor"`
	Tick      int64  `json:"tick"`
	Script    string `json:"script"`
	SaveMark  string `json:"save_mark"`
	Status    string `json:"status"`
}

func slotEntry(s store.SaveSlot) SlotEntry {
	return SlotEntry{
		ID:        s.ID,
		Name:      s.Name,
		Conductor: s.Conductor,
		Tick:      s.Tick,
		Script:    s.Snapshot.ScriptFilePath,
		SaveMark:  s.Snapshot.SaveMarkName,
		Status:    s.Snapshot.Status.String(),
	}
}

// NewSavesCommand creates the saves command and its subcommands.
func NewSavesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SavesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "saves",
		Short: "List, show and delete save slots",
		Long: `Inspect the save slots written by "novella run --save".

Without a subcommand every slot is listed, oldest write first.

Example:
  novella saves --db ./novella.db
  novella saves show quick --db ./novella.db
  novella saves delete quick --db ./novella.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSavesList(opts, cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Conductor, "conductor", MainConductor, "conductor the slot belongs to")

	cmd.AddCommand(&cobra.Command{
		Use:           "show <name>",
		Short:         "Print one save slot with its snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSavesShow(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a save slot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSavesDelete(opts, args[0], cmd)
		},
	})

	return cmd
}

// openSaves loads the project and opens its database, reporting failures
// through formatter.
func openSaves(opts *SavesOptions, cmd *cobra.Command, formatter *OutputFormatter) (*Project, *store.Store, error) {
	project, err := loadProject(opts.RootOptions, Overrides{Database: opts.Database}, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	if err := project.requireDatabase(); err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		project.Close()
		return nil, nil, err
	}
	st, err := project.OpenStore()
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		project.Close()
		return nil, nil, err
	}
	return project, st, nil
}

func runSavesList(opts *SavesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	project, st, err := openSaves(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer project.Close()
	defer st.Close()

	slots, err := st.ListSaveSlots(cmd.Context())
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list save slots", err)
	}

	entries := make([]SlotEntry, 0, len(slots))
	for _, s := range slots {
		entries = append(entries, slotEntry(s))
	}

	if formatter.JSON() {
		return formatter.Success(map[string]any{"slots": entries})
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No save slots.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%-16s %-8s tick %-6d %s#%s\n", e.Name, e.Conductor, e.Tick, e.Script, e.SaveMark)
	}
	return nil
}

func runSavesShow(opts *SavesOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	project, st, err := openSaves(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer project.Close()
	defer st.Close()

	slot, err := st.ReadSaveSlot(cmd.Context(), name, opts.Conductor)
	if err != nil {
		return slotError(formatter, name, err)
	}

	if formatter.JSON() {
		return formatter.Success(map[string]any{
			"slot":     slotEntry(slot),
			"snapshot": slot.Snapshot,
		})
	}
	data, err := slot.Snapshot.MarshalCanonical()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode snapshot", err)
	}
	e := slotEntry(slot)
	fmt.Fprintf(formatter.Writer, "%s (%s) tick %d seq %d\n", e.Name, e.Conductor, e.Tick, slot.Seq)
	fmt.Fprintf(formatter.Writer, "%s\n", data)
	return nil
}

func runSavesDelete(opts *SavesOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	project, st, err := openSaves(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer project.Close()
	defer st.Close()

	if err := st.DeleteSaveSlot(cmd.Context(), name, opts.Conductor); err != nil {
		return slotError(formatter, name, err)
	}
	project.Logger.Info("save slot deleted", "slot", name, "conductor", opts.Conductor)

	if formatter.JSON() {
		return formatter.Success(map[string]any{"deleted": name})
	}
	fmt.Fprintf(formatter.Writer, "Deleted %s\n", name)
	return nil
}

// slotError reports a failed slot lookup. A missing slot is exit code 1.
func slotError(formatter *OutputFormatter, name string, err error) error {
	if errors.Is(err, store.ErrSlotNotFound) {
		msg := fmt.Sprintf("save slot not found: %s", name)
		_ = formatter.Error(ErrCodeSlotMissing, msg, nil)
		return NewExitError(ExitFailure, msg)
	}
	_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
	return WrapExitError(ExitCommandError, "save slot query failed", err)
}
