package script

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/novella/internal/ir"
)

func TestParse_Directives(t *testing.T) {
	src := `
- label: start
- save_mark: {name: m1, comment: "Opening"}
- bg: {file: room.png, time: 500, fade: true}
- ch: {name: alice, text: "Hello."}
- line_break
- js: "flags.met = true"
- js: {expr: "flags.count", print: true}
- endif
`
	tags, err := Parse("a.yaml", []byte(src))
	require.NoError(t, err)
	require.Len(t, tags, 8)

	assert.Equal(t, ir.KindLabel, tags[0].Kind())
	assert.Equal(t, "start", tags[0].String(ir.KeyBody))
	assert.Equal(t, 2, tags[0].Line())

	assert.Equal(t, ir.KindSaveMark, tags[1].Kind())
	assert.Equal(t, "m1", tags[1].String(ir.KeyName))
	assert.Equal(t, "Opening", tags[1].String(ir.KeyComment))

	assert.Equal(t, "bg", tags[2].Kind())
	assert.Equal(t, []string{"file", "time", "fade"}, tags[2].Keys())
	n, ok := tags[2].Int("time")
	require.True(t, ok)
	assert.Equal(t, int64(500), n)
	assert.True(t, tags[2].Bool("fade"))

	assert.Equal(t, ir.KindCharacter, tags[3].Kind())
	assert.Equal(t, "Hello.", tags[3].String(ir.KeyText))

	assert.Equal(t, ir.KindLineBreak, tags[4].Kind())
	assert.Equal(t, 0, tags[4].Len())

	assert.Equal(t, ir.KindJs, tags[5].Kind())
	assert.Equal(t, "flags.met = true", tags[5].String(ir.KeyBody))
	assert.False(t, tags[5].Bool(ir.KeyPrint))

	assert.Equal(t, "flags.count", tags[6].String(ir.KeyBody))
	assert.True(t, tags[6].Bool(ir.KeyPrint))

	assert.Equal(t, "endif", tags[7].Kind())
	assert.Equal(t, 9, tags[7].Line())
}

func TestParse_SaveMarkScalar(t *testing.T) {
	tags, err := Parse("a.yaml", []byte("- save_mark: m2\n"))
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "m2", tags[0].String(ir.KeyName))
	assert.Equal(t, "", tags[0].String(ir.KeyComment))
}

func TestParse_LabelMapping(t *testing.T) {
	tags, err := Parse("a.yaml", []byte("- label: {name: top}\n"))
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "top", tags[0].String(ir.KeyBody))
}

func TestParse_NestedValues(t *testing.T) {
	tags, err := Parse("a.yaml", []byte("- anim: {frames: [1, 2, 3], pos: {x: 10, y: 20}, name: ~}\n"))
	require.NoError(t, err)
	require.Len(t, tags, 1)

	frames, ok := tags[0].Get("frames")
	require.True(t, ok)
	assert.Equal(t, ir.Array{ir.Int(1), ir.Int(2), ir.Int(3)}, frames)

	pos, ok := tags[0].Get("pos")
	require.True(t, ok)
	assert.Equal(t, ir.Object{"x": ir.Int(10), "y": ir.Int(20)}, pos)

	name, ok := tags[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, ir.Null{}, name)
}

func TestParse_Empty(t *testing.T) {
	for _, src := range []string{"", "\n", "~\n", "# only a comment\n"} {
		tags, err := Parse("empty.yaml", []byte(src))
		require.NoError(t, err, "source %q", src)
		assert.Empty(t, tags, "source %q", src)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"not a sequence", "label: start\n", 1},
		{"multi-key directive", "- {a: 1, b: 2}\n", 1},
		{"nested sequence directive", "- [a, b]\n", 1},
		{"sequence payload", "- bg: [a, b]\n", 1},
		{"invalid yaml", "- bg: {file: [\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, IsParseError(err))

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "bad.yaml", pe.Path)
			if tt.line > 0 {
				assert.Equal(t, tt.line, pe.Line)
			}
		})
	}
}

func TestParse_Aliases(t *testing.T) {
	src := `
- bg: {pos: &origin {x: 0, y: 0}}
- move: {from: *origin}
`
	tags, err := Parse("a.yaml", []byte(src))
	require.NoError(t, err)
	require.Len(t, tags, 2)

	from, ok := tags[1].Get("from")
	require.True(t, ok)
	assert.Equal(t, ir.Object{"x": ir.Int(0), "y": ir.Int(0)}, from)
}

func TestParse_SelfReferencingAlias(t *testing.T) {
	_, err := Parse("loop.yaml", []byte("- msg: &a {x: *a}\n"))
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestParse_AliasFanOut(t *testing.T) {
	var b strings.Builder
	b.WriteString("- msg:\n    l0: &l0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= 9; i++ {
		ref := fmt.Sprintf("*l%d", i-1)
		refs := strings.TrimSuffix(strings.Repeat(ref+", ", 10), ", ")
		fmt.Fprintf(&b, "    l%d: &l%d [%s]\n", i, i, refs)
	}

	_, err := Parse("laughs.yaml", []byte(b.String()))
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "laughs.yaml", pe.Path)
	assert.Contains(t, pe.Message, "expand")
}
