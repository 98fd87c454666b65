package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/novella/internal/ir"
)

func TestValidate_Clean(t *testing.T) {
	issues := Validate(sampleTags())
	assert.Empty(t, issues)
	assert.False(t, HasErrors(issues))
}

func TestValidate_Problems(t *testing.T) {
	tags := []ir.Tag{
		ir.NewTag(ir.KindLabel, 1, ir.P(ir.KeyBody, ir.String("A"))),
		ir.NewTag(ir.KindLabel, 2, ir.P(ir.KeyBody, ir.String("A"))),
		ir.NewTag(ir.KindSaveMark, 3),
		ir.NewTag(KindEndIf, 4),
		ir.NewTag(KindFor, 5),
		ir.NewTag(ir.KindJs, 6),
	}

	issues := Validate(tags)
	require.Len(t, issues, 5)
	assert.True(t, HasErrors(issues))

	assert.Equal(t, `line 2: error: duplicate label "A" (first defined on line 1)`, issues[0].String())
	assert.Equal(t, "line 3: error: save mark has an empty name", issues[1].String())
	assert.Equal(t, "line 4: error: endif without matching if", issues[2].String())
	assert.Equal(t, "line 6: warning: js directive has an empty body", issues[3].String())
	assert.Equal(t, "line 5: error: for is never closed", issues[4].String())
}

func TestValidate_MismatchedCloser(t *testing.T) {
	issues := Validate([]ir.Tag{
		ir.NewTag(KindMacro, 1),
		ir.NewTag(KindEndFor, 2),
		ir.NewTag(KindEndMacro, 3),
	})
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Line)
}

func TestValidate_WarningsOnly(t *testing.T) {
	issues := Validate([]ir.Tag{ir.NewTag(ir.KindJs, 1, ir.P(ir.KeyBody, ir.String("")))})
	require.Len(t, issues, 1)
	assert.False(t, HasErrors(issues))
}
