package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionOf(t *testing.T) {
	assert.Equal(t, "001", VersionOf("migrations/001_init.sql"))
	assert.Equal(t, "002", VersionOf("002_add_indexes.sql"))
	assert.Equal(t, "003", VersionOf("003.sql"))
}

func TestSQLFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000_dir.sql"), 0o700))

	files, err := SQLFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "001_a.sql"), filepath.Join(dir, "002_b.sql")}, files)
}

func TestSQLFilesMissingDirectory(t *testing.T) {
	_, err := SQLFiles(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
