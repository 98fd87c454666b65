package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidDir(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.yaml":       "- label: a\n- save_mark: m1\n- msg: {text: hi}\n",
		"sub/chapter.yml": "- label: b\n",
		"notes.txt":       "not a script",
	})

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ "+filepath.Join(dir, "main.yaml"))
	assert.Contains(t, out, "✓ "+filepath.Join(dir, "sub", "chapter.yml"))
	assert.NotContains(t, out, "notes.txt")
	assert.Contains(t, out, "✓ All scripts valid (0 warning(s))")
}

func TestValidate_WarningsDoNotFail(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.yaml": "- js: \"\"\n"})

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "warning")
	assert.Contains(t, out, "✓ All scripts valid (1 warning(s))")
}

func TestValidate_DuplicateLabel(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.yaml": "- label: a\n- label: a\n"})

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+filepath.Join(dir, "main.yaml"))
	assert.Contains(t, out, "line 2: error:")
}

func TestValidate_JSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"good.yaml": "- label: a\n",
		"bad.yaml":  "- if: {exp: x}\n",
	})

	out, err := execute(t, "--format", "json", "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Errors)
	require.Len(t, resp.Data.Files, 2)
	assert.Equal(t, filepath.Join(dir, "bad.yaml"), resp.Data.Files[0].Path)
	assert.NotEmpty(t, resp.Data.Files[0].Issues)
	assert.Empty(t, resp.Data.Files[1].Issues)
}

func TestValidate_ParseErrorHasLine(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.yaml": "- label: a\n- {a: 1, b: 2}\n"})

	out, err := execute(t, "validate", filepath.Join(dir, "main.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "line 2: error: directive must be a single-key mapping")
}

func TestValidate_NonExistentPath(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_NoScripts(t *testing.T) {
	dir := writeFiles(t, map[string]string{"readme.md": "#"})

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no script files found")
}
