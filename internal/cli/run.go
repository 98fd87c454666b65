package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/novella/internal/engine"
	"github.com/roach88/novella/internal/ir"
	"github.com/roach88/novella/internal/store"
	"github.com/roach88/novella/internal/telemetry"
)

// MainConductor is the conductor name used by the run command and its save
// slots.
const MainConductor = "main"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Overrides

	Label    string
	MaxTicks int64
	Interval time.Duration
	Restore  string // save slot to resume from
	Save     string // save slot written when the run ends
}

// RunSummary is the result of a run, reported in JSON mode together with
// the script output.
type RunSummary struct {
	RunID    string `json:"run_id"`
	Script   string `json:"script"`
	Status   string `json:"status"`
	Tick     int64  `json:"tick"`
	SaveMark string `json:"save_mark,omitempty"`
	Saved    string `json:"saved,omitempty"`
	Errors   int    `json:"errors"`
	Output   string `json:"output,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Play a script on the console",
		Long: `Play a script headlessly, one tick at a time.

Text tags are printed, effects complete on the next tick and the run ends
once the conductor is stable or --max-ticks is reached. The script defaults
to "start" from the project file.

Example:
  novella run main.yaml --label intro
  novella run --db ./novella.db --save quick main.yaml
  novella run --db ./novella.db --restore quick`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			script := ""
			if len(args) == 1 {
				script = args[0]
			}
			return runScript(opts, script, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scripts, "scripts", "", "scripts directory (overrides project file)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default in-memory)")
	cmd.Flags().StringVar(&opts.Evaluator, "evaluator", "", "js evaluator (lua|starlark)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label to start at")
	cmd.Flags().Int64Var(&opts.MaxTicks, "max-ticks", 10000, "stop after this many ticks (0 for no limit)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "wall-clock time per tick (0 runs as fast as possible)")
	cmd.Flags().StringVar(&opts.Restore, "restore", "", "resume from this save slot")
	cmd.Flags().StringVar(&opts.Save, "save", "", "write a save slot with this name when the run ends")

	return cmd
}

func runScript(opts *RunOptions, scriptPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	project, err := loadProject(opts.RootOptions, opts.Overrides, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer project.Close()

	cfg := project.Config
	if scriptPath == "" {
		scriptPath = cfg.Start
	}
	label := opts.Label
	if label == "" && scriptPath == cfg.Start {
		label = cfg.Label
	}
	if scriptPath == "" && opts.Restore == "" {
		return NewExitError(ExitCommandError, "no script given and no start script configured")
	}

	runID := uuid.Must(uuid.NewV7()).String()
	logger := project.Logger.With("run", runID)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	shutdown, err := telemetry.Setup(ctx, "novella", telemetry.Settings{
		Endpoint: cfg.Otel.Endpoint,
		Enabled:  cfg.Otel.Enabled,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	res, err := project.NewResource()
	if err != nil {
		return err
	}
	if _, ok := res.CommandShortcut(ir.LineBreakTrigger); !ok {
		res.SetCommandShortcut(ir.LineBreakTrigger, ir.Shortcut{Tag: tagBreak})
	}

	st, err := project.OpenStore()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	tracker, err := project.NewTracker(ctx, st)
	if err != nil {
		return err
	}

	// Script text is streamed in text mode and collected in JSON mode.
	var collected bytes.Buffer
	var out io.Writer = cmd.OutOrStdout()
	if formatter.JSON() {
		out = &collected
	}

	host := &consoleHost{ctx: ctx, out: out, logger: logger, eval: res}

	var driverOpts []engine.DriverOption
	driverOpts = append(driverOpts, engine.WithDriverLogger(logger))

	var slot store.SaveSlot
	if opts.Restore != "" {
		slot, err = st.ReadSaveSlot(ctx, opts.Restore, MainConductor)
		if err != nil {
			if errors.Is(err, store.ErrSlotNotFound) {
				return NewExitError(ExitCommandError, fmt.Sprintf("save slot not found: %s", opts.Restore))
			}
			return WrapExitError(ExitCommandError, "failed to read save slot", err)
		}
		driverOpts = append(driverOpts, engine.WithClock(engine.NewClockAt(slot.Tick)))
	}

	driver := engine.NewDriver(driverOpts...)
	conductor := engine.New(MainConductor, res, tracker, host,
		engine.WithLogger(logger),
		engine.WithMaxSteps(cfg.MaxSteps),
	)
	host.driver = driver
	host.conductor = conductor
	if err := driver.Add(conductor); err != nil {
		return WrapExitError(ExitCommandError, "failed to register conductor", err)
	}

	if opts.Restore != "" {
		if err := conductor.Restore(ctx, slot.Snapshot, slot.Tick); err != nil {
			return WrapExitError(ExitFailure, "failed to restore save slot", err)
		}
	} else if err := conductor.Jump(ctx, scriptPath, label, false); err != nil {
		return WrapExitError(ExitFailure, "failed to load script", err)
	}
	conductor.Start()

	logger.Info("run starting", "script", conductor.LatestScriptFilePath(), "label", label, "restore", opts.Restore)

	stopWhen := func(d *engine.Driver) bool {
		if engine.UntilStable(d) {
			return true
		}
		return opts.MaxTicks > 0 && d.Tick() >= opts.MaxTicks
	}
	if err := driver.Run(ctx, opts.Interval, stopWhen); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "driver error", err)
	}

	// The reader saw everything up to a stable stop.
	if engine.UntilStable(driver) {
		if err := conductor.PassLatestSaveMark(); err != nil {
			logger.Warn("failed to record read state", "error", err)
		}
	}

	summary := RunSummary{
		RunID:    runID,
		Script:   conductor.LatestScriptFilePath(),
		Status:   conductor.Status().String(),
		Tick:     driver.Tick(),
		SaveMark: conductor.LatestSaveMarkName(),
	}

	if opts.Save != "" {
		if err := saveRun(ctx, st, conductor, driver.Tick(), opts.Save); err != nil {
			return err
		}
		summary.Saved = opts.Save
		logger.Info("save slot written", "slot", opts.Save, "save_mark", summary.SaveMark)
	}

	summary.Errors = host.errs
	var runErr error
	if host.errs > 0 {
		runErr = NewExitError(ExitFailure, fmt.Sprintf("%d error(s) during run", host.errs))
	}

	if formatter.JSON() {
		summary.Output = collected.String()
		if err := formatter.Success(summary); err != nil {
			return err
		}
		return runErr
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "-- %s at tick %d (%s)\n", summary.Script, summary.Tick, summary.Status)
	if summary.Saved != "" {
		fmt.Fprintf(w, "-- saved %q at %s\n", summary.Saved, summary.SaveMark)
	}
	return runErr
}

// saveRun stores the conductor under slot name. A run that never reached a
// save mark has nothing to resume from.
func saveRun(ctx context.Context, st *store.Store, c *engine.Conductor, tick int64, name string) error {
	mark := c.LatestSaveMarkName()
	if mark == "" {
		return NewExitError(ExitFailure, "cannot save: no save mark reached")
	}
	snap, err := c.Store(mark, tick)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot save", err)
	}
	_, err = st.WriteSaveSlot(ctx, store.SaveSlot{
		Name:      name,
		Conductor: c.Name(),
		Tick:      tick,
		Snapshot:  snap,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to write save slot", err)
	}
	return nil
}
