package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/novella/internal/engine"
)

// ErrSlotNotFound is returned when no save slot matches.
var ErrSlotNotFound = errors.New("save slot not found")

// SaveSlot is one save_slots row: a snapshot filed under Name for one
// conductor.
type SaveSlot struct {
	// ID is a UUIDv7, regenerated on every write.
	ID        string
	Name      string
	Conductor string
	Tick      int64
	Seq       int64
	Snapshot  engine.Snapshot
}

// NewSlotID returns a time-ordered UUIDv7 string.
func NewSlotID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// WriteSaveSlot stores slot, replacing any earlier snapshot filed under the
// same (Name, Conductor). A missing ID is generated. Seq is assigned by the
// store and returned.
func (s *Store) WriteSaveSlot(ctx context.Context, slot SaveSlot) (SaveSlot, error) {
	if slot.Name == "" {
		return SaveSlot{}, fmt.Errorf("write save slot: empty slot name")
	}
	if slot.ID == "" {
		slot.ID = NewSlotID()
	}

	data, err := slot.Snapshot.MarshalCanonical()
	if err != nil {
		return SaveSlot{}, fmt.Errorf("write save slot: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO save_slots (id, name, conductor, tick, seq, snapshot)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM save_slots), ?)
		ON CONFLICT(name, conductor) DO UPDATE SET
			id = excluded.id,
			tick = excluded.tick,
			seq = excluded.seq,
			snapshot = excluded.snapshot
		RETURNING seq
	`, slot.ID, slot.Name, slot.Conductor, slot.Tick, string(data)).Scan(&slot.Seq)
	if err != nil {
		return SaveSlot{}, fmt.Errorf("write save slot: %w", err)
	}
	return slot, nil
}

// ReadSaveSlot returns the slot filed under (name, conductor).
// Returns ErrSlotNotFound if there is none.
func (s *Store) ReadSaveSlot(ctx context.Context, name, conductor string) (SaveSlot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, conductor, tick, seq, snapshot
		FROM save_slots
		WHERE name = ? AND conductor = ?
	`, name, conductor)

	slot, err := scanSaveSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SaveSlot{}, fmt.Errorf("%w: %s/%s", ErrSlotNotFound, conductor, name)
	}
	if err != nil {
		return SaveSlot{}, fmt.Errorf("read save slot: %w", err)
	}
	return slot, nil
}

// ListSaveSlots returns every slot, oldest write first.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSaveSlots(ctx context.Context) ([]SaveSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, conductor, tick, seq, snapshot
		FROM save_slots
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query save slots: %w", err)
	}
	defer rows.Close()

	slots := []SaveSlot{}
	for rows.Next() {
		slot, err := scanSaveSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("list save slots: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate save slots: %w", err)
	}
	return slots, nil
}

// DeleteSaveSlot removes the slot filed under (name, conductor).
// Returns ErrSlotNotFound if there is none.
func (s *Store) DeleteSaveSlot(ctx context.Context, name, conductor string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM save_slots WHERE name = ? AND conductor = ?`, name, conductor)
	if err != nil {
		return fmt.Errorf("delete save slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete save slot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrSlotNotFound, conductor, name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSaveSlot(row rowScanner) (SaveSlot, error) {
	var (
		slot SaveSlot
		data string
	)
	if err := row.Scan(&slot.ID, &slot.Name, &slot.Conductor, &slot.Tick, &slot.Seq, &data); err != nil {
		return SaveSlot{}, err
	}
	snap, err := engine.DecodeSnapshot([]byte(data))
	if err != nil {
		return SaveSlot{}, fmt.Errorf("slot %s: %w", slot.ID, err)
	}
	slot.Snapshot = snap
	return slot, nil
}
