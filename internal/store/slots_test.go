package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/novella/internal/engine"
)

func testSnapshot(mark string) engine.Snapshot {
	return engine.Snapshot{
		Status:         engine.StatusSleep,
		SleepStartTick: 10,
		SleepTime:      30,
		SleepSender:    "wait",
		ScriptFilePath: "scenario/a.yaml",
		SaveMarkName:   mark,
	}
}

func TestWriteSaveSlot_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	written, err := s.WriteSaveSlot(ctx, SaveSlot{Name: "quick", Conductor: "main", Tick: 42, Snapshot: testSnapshot("m1")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), written.Seq)

	id, err := uuid.Parse(written.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	got, err := s.ReadSaveSlot(ctx, "quick", "main")
	require.NoError(t, err)
	assert.Equal(t, written, got)
}

func TestWriteSaveSlot_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.WriteSaveSlot(ctx, SaveSlot{Name: "quick", Conductor: "main", Tick: 1, Snapshot: testSnapshot("m1")})
	require.NoError(t, err)
	second, err := s.WriteSaveSlot(ctx, SaveSlot{Name: "quick", Conductor: "main", Tick: 2, Snapshot: testSnapshot("m2")})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Greater(t, second.Seq, first.Seq)

	slots, err := s.ListSaveSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "m2", slots[0].Snapshot.SaveMarkName)
	assert.Equal(t, int64(2), slots[0].Tick)
}

func TestWriteSaveSlot_EmptyName(t *testing.T) {
	s := createTestStore(t)
	_, err := s.WriteSaveSlot(context.Background(), SaveSlot{Conductor: "main"})
	assert.Error(t, err)
}

func TestWriteSaveSlot_CanonicalSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteSaveSlot(ctx, SaveSlot{ID: "slot-1", Name: "1", Conductor: "main", Snapshot: testSnapshot("m1")})
	require.NoError(t, err)

	var raw string
	require.NoError(t, s.db.QueryRow(`SELECT snapshot FROM save_slots WHERE id = 'slot-1'`).Scan(&raw))
	assert.Equal(t,
		`{"saveMarkName":"m1","scriptFilePath":"scenario/a.yaml","sleepSender":"wait","sleepStartTick":10,"sleepTime":30,"status":2}`,
		raw)
}

func TestReadSaveSlot_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadSaveSlot(context.Background(), "nope", "main")
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestListSaveSlots_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"3", "1", "2"} {
		_, err := s.WriteSaveSlot(ctx, SaveSlot{Name: name, Conductor: "main", Snapshot: testSnapshot("m")})
		require.NoError(t, err)
	}

	slots, err := s.ListSaveSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "3", slots[0].Name)
	assert.Equal(t, "1", slots[1].Name)
	assert.Equal(t, "2", slots[2].Name)
}

func TestDeleteSaveSlot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteSaveSlot(ctx, SaveSlot{Name: "quick", Conductor: "main", Snapshot: testSnapshot("m1")})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSaveSlot(ctx, "quick", "main"))
	assert.ErrorIs(t, s.DeleteSaveSlot(ctx, "quick", "main"), ErrSlotNotFound)
}
