package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestSavePreservesRunArtifacts(t *testing.T) {
	scratch := t.TempDir()

	rundir := filepath.Join(scratch, "rundir")
	writeFile(t, filepath.Join(rundir, "output.txt"), "test output")
	writeFile(t, filepath.Join(rundir, "commands.txt"), "test_stress1.tdb --only_create")
	writeFile(t, filepath.Join(rundir, "envdir", "data.db"), "db contents")

	binary := filepath.Join(scratch, "tests", "test_stress1.tdb")
	writeFile(t, binary, "elf")

	libDir := filepath.Join(scratch, "lib")
	writeFile(t, filepath.Join(libDir, "libengine.so"), "so")
	writeFile(t, filepath.Join(libDir, "engine.a"), "static, not archived")

	archiver, err := New(filepath.Join(scratch, "failures"))
	require.NoError(t, err)

	prefix := "test_stress1.tdb-abc123-2000-100000-1-1-stress-"
	dir, err := archiver.Save(prefix, rundir, binary, libDir)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(dir), prefix),
		"archive directory %q must start with the run's prefix", dir)

	for _, name := range []string{
		"output.txt",
		"commands.txt",
		filepath.Join("envdir", "data.db"),
		"test_stress1.tdb",
		"libengine.so",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoErrorf(t, err, "expected %s in the archive", name)
	}
	_, err = os.Stat(filepath.Join(dir, "engine.a"))
	assert.Error(t, err, "only shared libraries are archived")
}

func TestSaveDirectoriesAreUnique(t *testing.T) {
	scratch := t.TempDir()
	rundir := filepath.Join(scratch, "rundir")
	writeFile(t, filepath.Join(rundir, "output.txt"), "x")
	binary := filepath.Join(scratch, "test_stress1.tdb")
	writeFile(t, binary, "elf")

	archiver, err := New(filepath.Join(scratch, "failures"))
	require.NoError(t, err)

	first, err := archiver.Save("p-", rundir, binary, scratch)
	require.NoError(t, err)
	second, err := archiver.Save("p-", rundir, binary, scratch)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSaveKeepsGoingPastMissingFiles(t *testing.T) {
	scratch := t.TempDir()
	rundir := filepath.Join(scratch, "rundir")
	writeFile(t, filepath.Join(rundir, "output.txt"), "x")

	archiver, err := New(filepath.Join(scratch, "failures"))
	require.NoError(t, err)

	dir, err := archiver.Save("p-", rundir, filepath.Join(scratch, "missing-binary"), scratch)
	require.Error(t, err, "the missing binary must be reported")
	require.NotEmpty(t, dir)

	_, statErr := os.Stat(filepath.Join(dir, "output.txt"))
	assert.NoError(t, statErr, "artifacts that exist are still archived")
}
