package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("game: nwn\n"), 0o644))
	return p
}

func TestFindTableSearchOrder(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	t.Setenv(EnvTables, first+string(os.PathListSeparator)+second)

	shared := writeTable(t, second, TableFile)
	writeTable(t, first, "kotor.yaml")
	shadowed := writeTable(t, first, "nwn2.yaml")
	writeTable(t, second, "nwn2.yaml")

	dirs := TableDirs()
	require.GreaterOrEqual(t, len(dirs), 2)
	assert.Equal(t, []string{first, second}, dirs[:2])

	p, ok := FindTable("nwn2.yaml")
	require.True(t, ok)
	assert.Equal(t, shadowed, p)

	assert.Equal(t, []string{shared, filepath.Join(first, "kotor.yaml")}, DefaultTables("KotOR"))

	_, ok = FindTable("jade.yaml")
	assert.False(t, ok)
}

func TestFindTablePath(t *testing.T) {
	dir := t.TempDir()
	p := writeTable(t, dir, "x.yaml")
	got, ok := FindTable(p)
	assert.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = FindTable(filepath.Join(dir, "missing.yaml"))
	assert.False(t, ok)
	// A directory is not a table.
	_, ok = FindTable(dir)
	assert.False(t, ok)
}

func TestGameTableFile(t *testing.T) {
	assert.Equal(t, "nwn2.yaml", GameTableFile("NWN2"))
}
