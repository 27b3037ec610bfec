package envcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = Key{Executable: "test_stress1.tdb", TableSize: 2000, CacheSize: 100000}

func writeEnv(t *testing.T, dir, marker string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.db"), []byte(marker), 0o644))
}

func TestProvideCreatesAndSnapshots(t *testing.T) {
	root := t.TempDir()
	cache := New(root)

	envdir := filepath.Join(t.TempDir(), "envdir")
	created := false
	err := cache.Provide(envdir, key, func() error {
		created = true
		writeEnv(t, envdir, "fresh")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, created)

	// The snapshot lands under the cache root with the key's name.
	cached := filepath.Join(root, "dir.test_stress1.tdb-2000-100000")
	data, err := os.ReadFile(filepath.Join(cached, "data.db"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestProvideReusesSnapshot(t *testing.T) {
	root := t.TempDir()
	cache := New(root)

	first := filepath.Join(t.TempDir(), "envdir")
	require.NoError(t, cache.Provide(first, key, func() error {
		writeEnv(t, first, "original")
		return nil
	}))

	second := filepath.Join(t.TempDir(), "envdir")
	err := cache.Provide(second, key, func() error {
		t.Fatal("create must not run when a snapshot exists")
		return nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(second, "data.db"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestProvideLosingSnapshotRaceIsNotAnError(t *testing.T) {
	root := t.TempDir()
	cache := New(root)
	cached := filepath.Join(root, "dir.test_stress1.tdb-2000-100000")

	envdir := filepath.Join(t.TempDir(), "envdir")
	err := cache.Provide(envdir, key, func() error {
		writeEnv(t, envdir, "loser")
		// Another run publishes the same key while ours is still creating.
		writeEnv(t, cached, "winner")
		return nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cached, "data.db"))
	require.NoError(t, err)
	assert.Equal(t, "winner", string(data), "the first published snapshot stands")

	leftovers, err := filepath.Glob(cached + ".tmp-*")
	require.NoError(t, err)
	assert.Empty(t, leftovers, "losing snapshots are discarded")
}

func TestProvideCreateFailureIsReturned(t *testing.T) {
	cache := New(t.TempDir())
	envdir := filepath.Join(t.TempDir(), "envdir")
	wantErr := assert.AnError
	err := cache.Provide(envdir, key, func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}
