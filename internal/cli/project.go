package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/novella/internal/config"
	"github.com/roach88/novella/internal/eval"
	"github.com/roach88/novella/internal/logging"
	"github.com/roach88/novella/internal/readunread"
	"github.com/roach88/novella/internal/resource"
	"github.com/roach88/novella/internal/store"
)

// memoryDatabase keeps read/unread state and save slots for one process only.
const memoryDatabase = ":memory:"

// Project is a loaded project file plus the logger built from it.
type Project struct {
	Config *config.Config
	Logger *slog.Logger

	logFile *os.File
}

// Overrides are flag values that take precedence over the project file.
// Empty fields leave the configured value alone.
type Overrides struct {
	Scripts   string
	Database  string
	Evaluator string
}

// loadProject reads the project file named by opts.Config. The default file
// is optional; an explicitly named one must exist.
func loadProject(opts *RootOptions, ov Overrides, errOut io.Writer) (*Project, error) {
	path := opts.Config
	optional := path == ""
	if optional {
		path = config.FileName
	}

	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid project file", err)
	}
	if ov.Scripts != "" {
		cfg.Scripts = ov.Scripts
	}
	if ov.Database != "" {
		cfg.Database = ov.Database
	}
	if ov.Evaluator != "" {
		cfg.Evaluator = ov.Evaluator
	}

	p := &Project{Config: cfg}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logOpts := logging.Options{Writer: errOut, Level: level, Journal: cfg.Journal}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		p.logFile = f
		logOpts.File = f
	}
	p.Logger = logging.New(logOpts)
	return p, nil
}

// Close releases the log file, if any.
func (p *Project) Close() error {
	if p.logFile == nil {
		return nil
	}
	return p.logFile.Close()
}

// databasePath returns the configured database, or an in-memory one.
func (p *Project) databasePath() string {
	if p.Config.Database == "" {
		return memoryDatabase
	}
	return p.Config.Database
}

// OpenStore opens the configured database.
func (p *Project) OpenStore() (*store.Store, error) {
	path := p.databasePath()
	p.Logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// requireDatabase fails when no database file is configured. Commands that
// only inspect saved state have nothing to show for an in-memory database.
func (p *Project) requireDatabase() error {
	if p.Config.Database == "" {
		return NewExitError(ExitCommandError, "no database configured (use --db, the project file or NOVELLA_DATABASE)")
	}
	if _, err := os.Stat(p.Config.Database); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", p.Config.Database), err)
	}
	return nil
}

// NewResource builds a script resource rooted at the scripts directory.
func (p *Project) NewResource() (*resource.Resource, error) {
	info, err := os.Stat(p.Config.Scripts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("scripts directory not found: %s", p.Config.Scripts), err)
	}
	if !info.IsDir() {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("scripts path is not a directory: %s", p.Config.Scripts))
	}

	ev, err := eval.New(p.Config.Evaluator)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid evaluator", err)
	}
	return resource.New(os.DirFS(p.Config.Scripts),
		resource.WithEvaluator(ev),
		resource.WithShortcuts(p.Config.Shortcuts),
		resource.WithLogger(p.Logger),
	), nil
}

// NewTracker returns a tracker that writes through to st, warmed with the
// marks st already holds.
func (p *Project) NewTracker(ctx context.Context, st *store.Store) (*readunread.Tracker, error) {
	t := readunread.New(readunread.WithPersister(st), readunread.WithContext(ctx))
	if err := t.Load(ctx, st); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load read state", err)
	}
	p.Logger.Debug("read state loaded", "marks", t.Len())
	return t, nil
}
