package resource

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/novella/internal/eval"
	"github.com/roach88/novella/internal/ir"
	"github.com/roach88/novella/internal/readunread"
	"github.com/roach88/novella/internal/script"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"scenario/first.yaml": {Data: []byte("- label: start\n- msg: {text: hi}\n- save_mark: m1\n")},
		"scenario/bad.yaml":   {Data: []byte("label: start\n")},
	}
}

func TestLoadScript_FreshCursors(t *testing.T) {
	r := New(testFS())
	ctx := context.Background()

	a, err := r.LoadScript(ctx, "scenario/first.yaml")
	require.NoError(t, err)
	b, err := r.LoadScript(ctx, "scenario/first.yaml")
	require.NoError(t, err)

	assert.Equal(t, "scenario/first.yaml", a.FilePath())

	tag, ok := a.NextTag()
	require.True(t, ok)
	assert.Equal(t, ir.KindLabel, tag.Kind())

	tag, ok = b.NextTag()
	require.True(t, ok)
	assert.Equal(t, ir.KindLabel, tag.Kind(), "second cursor starts at the beginning")
}

func TestLoadScript_CleanPathIdentity(t *testing.T) {
	r := New(testFS())
	ctx := context.Background()

	a, err := r.LoadScript(ctx, "./scenario/first.yaml")
	require.NoError(t, err)
	b, err := r.LoadScript(ctx, "scenario/../scenario/first.yaml")
	require.NoError(t, err)

	assert.Equal(t, "scenario/first.yaml", a.FilePath())
	assert.Equal(t, a.FilePath(), b.FilePath())

	tr := readunread.New()
	require.NoError(t, tr.Pass(a.FilePath(), "m1"))
	assert.True(t, tr.IsPassed(b.FilePath(), "m1"), "read state is shared by file")
}

func TestLoadScript_ParseErrorUsesCleanPath(t *testing.T) {
	r := New(testFS())

	_, err := r.LoadScript(context.Background(), "./scenario/bad.yaml")
	require.Error(t, err)

	var pe *script.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "scenario/bad.yaml", pe.Path)
}

func TestLoadScript_Cached(t *testing.T) {
	fsys := testFS()
	r := New(fsys)
	ctx := context.Background()

	_, err := r.LoadScript(ctx, "scenario/first.yaml")
	require.NoError(t, err)

	fsys["scenario/first.yaml"] = &fstest.MapFile{Data: []byte("- label: changed\n")}
	tags, err := r.Tags(ctx, "scenario/first.yaml")
	require.NoError(t, err)
	assert.Len(t, tags, 3, "cached parse is reused")

	r.Invalidate("scenario/first.yaml")
	tags, err = r.Tags(ctx, "scenario/first.yaml")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "changed", tags[0].String(ir.KeyBody))
}

func TestLoadScript_Errors(t *testing.T) {
	r := New(testFS())
	ctx := context.Background()

	_, err := r.LoadScript(ctx, "scenario/missing.yaml")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = r.LoadScript(ctx, "scenario/bad.yaml")
	assert.True(t, script.IsParseError(err))

	_, err = r.LoadScript(ctx, "../outside.yaml")
	assert.Error(t, err)
}

func TestCommandShortcuts(t *testing.T) {
	r := New(testFS(), WithShortcuts(map[string]ir.Shortcut{
		ir.LineBreakTrigger: {Tag: "l"},
	}))

	rule, ok := r.CommandShortcut(ir.LineBreakTrigger)
	require.True(t, ok)
	assert.Equal(t, "l", rule.Tag)

	r.SetCommandShortcut("@", ir.Shortcut{Tag: "ch", Values: []ir.Param{ir.P("name", ir.String("narrator"))}})
	_, ok = r.CommandShortcut("@")
	assert.True(t, ok)

	r.RemoveCommandShortcut("@")
	_, ok = r.CommandShortcut("@")
	assert.False(t, ok)
}

func TestEval_UsesEvaluator(t *testing.T) {
	r := New(testFS(), WithEvaluator(eval.NewStarlark()))
	assert.Equal(t, eval.LangStarlark, r.Evaluator().Language())

	v, err := r.Eval(context.Background(), "2 * 21")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(42), v)
}
