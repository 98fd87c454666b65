package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDatabase runs a script that passes m1 and saves slot "quick".
func seedDatabase(t *testing.T) (scripts, db string) {
	t.Helper()
	scripts = writeFiles(t, map[string]string{"main.yaml": `
- save_mark: m1
- msg: {text: one}
- save_mark: m2
- msg: {text: two}
`})
	db = filepath.Join(t.TempDir(), "novella.db")
	_, err := execute(t, "run", "--scripts", scripts, "--db", db, "--save", "quick", "main.yaml")
	require.NoError(t, err)
	return scripts, db
}

func TestMarks_List(t *testing.T) {
	_, db := seedDatabase(t)

	out, err := execute(t, "marks", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "main.yaml#m1")
	assert.Contains(t, out, "main.yaml#m2")
}

func TestMarks_JSONAndReset(t *testing.T) {
	_, db := seedDatabase(t)

	out, err := execute(t, "--format", "json", "marks", "--db", db, "main.yaml")
	require.NoError(t, err)

	var resp struct {
		Data MarksResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Marks, 2)
	assert.Equal(t, MarkEntry{File: "main.yaml", Mark: "m1", Seq: resp.Data.Marks[0].Seq}, resp.Data.Marks[0])
	assert.Equal(t, "m2", resp.Data.Marks[1].Mark)

	out, err = execute(t, "marks", "--db", db, "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 2 mark(s)")

	out, err = execute(t, "marks", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No marks passed.")
}

func TestMarks_RequiresDatabase(t *testing.T) {
	_, err := execute(t, "marks")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "marks", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSaves_ListShowDelete(t *testing.T) {
	_, db := seedDatabase(t)

	out, err := execute(t, "saves", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "quick")
	assert.Contains(t, out, "main.yaml#m2")

	out, err = execute(t, "--format", "json", "saves", "show", "quick", "--db", db)
	require.NoError(t, err)
	var show struct {
		Data struct {
			Slot SlotEntry `json:"slot"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &show))
	assert.Equal(t, "quick", show.Data.Slot.Name)
	assert.Equal(t, MainConductor, show.Data.Slot.Conductor)
	assert.Equal(t, "m2", show.Data.Slot.SaveMark)
	assert.Equal(t, "stop", show.Data.Slot.Status)
	assert.NotEmpty(t, show.Data.Slot.ID)

	out, err = execute(t, "saves", "show", "quick", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `"saveMarkName":"m2"`)

	out, err = execute(t, "saves", "delete", "quick", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted quick")

	out, err = execute(t, "saves", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No save slots.")
}

func TestSaves_MissingSlot(t *testing.T) {
	_, db := seedDatabase(t)

	out, err := execute(t, "--format", "json", "saves", "delete", "nope", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSlotMissing, resp.Error.Code)
}
