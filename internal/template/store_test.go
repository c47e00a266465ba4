package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main_colors.sql", "SELECT color FROM trees WHERE count > {threshold}")
	writeFile(t, dir, "main_color_trees.sql", "SELECT * FROM {main_colors.full_name}")
	writeFile(t, dir, ".hidden.sql", "SELECT 1")
	writeFile(t, dir, "notes.txt", "not a template")

	templates, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, templates, 2)

	// Name order, hidden and non-SQL files skipped.
	assert.Equal(t, "main_color_trees", templates[0].Name)
	assert.Equal(t, "main_colors", templates[1].Name)
	assert.Equal(t, []string{"threshold"}, templates[1].Params)
	assert.Equal(t, []Ref{{Target: "main_colors", Attribute: AttrFullName}}, templates[0].Refs)
}

func TestLoadDir_ParseErrorNamesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.sql", "SELECT {oops FROM x")

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.sql")
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
