package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassMark_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PassMark(ctx, "a.yaml", "m1"))
	require.NoError(t, s.PassMark(ctx, "a.yaml", "m1"))

	marks, err := s.PassedMarks(ctx, "a.yaml")
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, int64(1), marks[0].Seq)
}

func TestIsPassed_KeyedByFile(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PassMark(ctx, "a.yaml", "m1"))

	ok, err := s.IsPassed(ctx, "a.yaml", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsPassed(ctx, "b.yaml", "m1")
	require.NoError(t, err)
	assert.False(t, ok, "same mark name in another file is unpassed")
}

func TestPassedMarks_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PassMark(ctx, "b.yaml", "z"))
	require.NoError(t, s.PassMark(ctx, "a.yaml", "y"))
	require.NoError(t, s.PassMark(ctx, "b.yaml", "x"))

	all, err := s.PassedMarks(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []PassedMark{
		{FilePath: "b.yaml", MarkName: "z", Seq: 1},
		{FilePath: "a.yaml", MarkName: "y", Seq: 2},
		{FilePath: "b.yaml", MarkName: "x", Seq: 3},
	}, all)

	onlyB, err := s.PassedMarks(ctx, "b.yaml")
	require.NoError(t, err)
	assert.Len(t, onlyB, 2)
}

func TestPassedMarks_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	marks, err := s.PassedMarks(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, marks)
	assert.Empty(t, marks)
}

func TestResetMarks(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PassMark(ctx, "a.yaml", "m1"))
	require.NoError(t, s.PassMark(ctx, "a.yaml", "m2"))
	require.NoError(t, s.PassMark(ctx, "b.yaml", "m1"))

	n, err := s.ResetMarks(ctx, "a.yaml")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.ResetMarks(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
