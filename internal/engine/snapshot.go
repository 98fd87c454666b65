package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/novella/internal/ir"
)

// Snapshot is the persistable state of a Conductor at a save point.
//
// The field set is exact: execution resumes by reloading ScriptFilePath and
// seeking SaveMarkName, so nothing about the cursor position beyond the
// save-mark name is recorded.
type Snapshot struct {
	Status         Status `json:"status"`
	SleepStartTick int64  `json:"sleepStartTick"`
	SleepTime      int64  `json:"sleepTime"`
	SleepSender    string `json:"sleepSender"`
	ScriptFilePath string `json:"scriptFilePath"`
	SaveMarkName   string `json:"saveMarkName"`
}

// MarshalCanonical encodes the snapshot as canonical JSON (sorted keys, no
// insignificant whitespace), suitable for byte-stable storage.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(ir.Object{
		"status":         ir.Int(s.Status),
		"sleepStartTick": ir.Int(s.SleepStartTick),
		"sleepTime":      ir.Int(s.SleepTime),
		"sleepSender":    ir.String(s.SleepSender),
		"scriptFilePath": ir.String(s.ScriptFilePath),
		"saveMarkName":   ir.String(s.SaveMarkName),
	})
}

// DecodeSnapshot parses a snapshot written by MarshalCanonical or
// encoding/json. Unknown fields and out-of-range statuses are rejected.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Status < StatusStop || s.Status > StatusSleep {
		return Snapshot{}, fmt.Errorf("decode snapshot: invalid status %d", int(s.Status))
	}
	return s, nil
}

// Store captures a snapshot for saving at saveMarkName.
//
// Saving is refused while the cursor is inside a macro, a for loop or an if
// block, checked in that order; the first match is returned as
// *StructuralSaveError. Store has no side effects on the conductor.
func (c *Conductor) Store(saveMarkName string, tick int64) (Snapshot, error) {
	path := c.script.FilePath()

	var kind SaveErrorKind
	switch {
	case c.script.InsideMacro():
		kind = SaveInMacro
	case c.script.InsideForLoop():
		kind = SaveInForLoop
	case c.script.InsideIf():
		kind = SaveInIf
	}
	if kind != "" {
		c.logger.Warn("save refused", "kind", string(kind), "path", path, "tick", tick)
		return Snapshot{}, &StructuralSaveError{Kind: kind, FilePath: path}
	}

	snap := Snapshot{
		Status:         c.status,
		SleepStartTick: c.sleepStartTick,
		SleepTime:      c.sleepTime,
		SleepSender:    c.sleepSender,
		ScriptFilePath: path,
		SaveMarkName:   saveMarkName,
	}
	c.logger.Debug("snapshot stored", "path", path, "save_mark", saveMarkName, "tick", tick)
	return snap, nil
}

// Restore rebuilds execution state from snap.
//
// The conductor is forced to Stop (the stored status and sleep fields are
// not reapplied), the script is reloaded and the cursor is positioned at the
// save-mark so that it is dispatched again on the next run. The latest
// save-mark is cleared without being passed, since it belongs to the
// abandoned position.
//
// Load and seek failures are reported to Hooks.OnError and returned.
func (c *Conductor) Restore(ctx context.Context, snap Snapshot, tick int64) error {
	ctx, span := c.tracer.Start(ctx, "conductor.restore", trace.WithAttributes(
		attribute.String(attrConductor, c.name),
		attribute.String(attrScript, snap.ScriptFilePath),
		attribute.String(attrSaveMark, snap.SaveMarkName),
		attribute.Int64("novella.tick", tick),
	))
	defer span.End()

	c.Stop()
	c.latestSaveMarkName = ""

	if err := c.LoadScript(ctx, snap.ScriptFilePath); err != nil {
		span.SetStatus(codes.Error, "restore failed")
		return err
	}
	if err := c.seek(TargetSaveMark, snap.SaveMarkName); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "restore failed")
		return err
	}

	c.logger.Info("snapshot restored", "path", snap.ScriptFilePath, "save_mark", snap.SaveMarkName, "tick", tick)
	return nil
}
