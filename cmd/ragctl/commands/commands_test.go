package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()

	for _, path := range [][]string{
		{"migrate"},
		{"tenant", "create"},
		{"tenant", "list"},
		{"tenant", "show"},
		{"user", "create"},
		{"index"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestIndexRequiresTenant(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"index", t.TempDir()})
	root.SetOut(new(nopWriter))
	root.SetErr(new(nopWriter))

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant")
}

func TestListPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	files, err := listPDFs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.PDF"), filepath.Join(dir, "b.pdf")}, files)

	_, err = listPDFs(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }
