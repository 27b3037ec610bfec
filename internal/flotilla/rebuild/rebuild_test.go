package rebuild

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder(t *testing.T) *CommandBuilder {
	sourceDir := t.TempDir()
	b := NewCommandBuilder(Params{
		SourceDir:       sourceDir,
		BuildDir:        filepath.Join(sourceDir, "build"),
		InstallDir:      filepath.Join(sourceDir, "install"),
		Compiler:        "true",
		Targets:         []string{"test_stress1.tdb"},
		SyncCommand:     []string{"true"},
		RevisionCommand: []string{"echo", "abc123"},
	})
	b.ConfigureCommand = []string{"true"}
	b.BuildCommand = []string{"true"}
	return b
}

func TestBuildRunsAllSteps(t *testing.T) {
	b := testBuilder(t)
	err := b.Build(context.Background())
	assert.NoError(t, err)
	assert.DirExists(t, b.BuildDir)
}

func TestBuildFailsOnSyncError(t *testing.T) {
	b := testBuilder(t)
	b.SyncCommand = []string{"false"}
	err := b.Build(context.Background())
	assert.ErrorContains(t, err, "sync failed")
}

func TestBuildFailsWithoutCompiler(t *testing.T) {
	b := testBuilder(t)
	b.Compiler = "false"
	err := b.Build(context.Background())
	assert.ErrorContains(t, err, "compiler")
}

func TestBuildFailsOnConfigureError(t *testing.T) {
	b := testBuilder(t)
	b.ConfigureCommand = []string{"false"}
	err := b.Build(context.Background())
	assert.ErrorContains(t, err, "configure failed")
}

func TestBuildFailsOnBuildError(t *testing.T) {
	b := testBuilder(t)
	b.BuildCommand = []string{"false"}
	err := b.Build(context.Background())
	assert.ErrorContains(t, err, "build failed")
}

func TestRevision(t *testing.T) {
	b := testBuilder(t)
	rev, err := b.Revision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", rev)
}

func TestRevisionRetriesBeforeGivingUp(t *testing.T) {
	b := testBuilder(t)
	marker := filepath.Join(t.TempDir(), "attempts")
	b.RevisionCommand = []string{"sh", "-c", "echo x >> " + marker + "; exit 1"}

	_, err := b.Revision(context.Background())
	require.Error(t, err)

	content, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Len(t, content, 3*len("x\n"))
}

func TestRevisionRejectsEmptyOutput(t *testing.T) {
	b := testBuilder(t)
	b.RevisionCommand = []string{"echo", ""}
	_, err := b.Revision(context.Background())
	assert.ErrorContains(t, err, "no output")
}

func TestNewCommandBuilderIntelCompiler(t *testing.T) {
	b := NewCommandBuilder(Params{Compiler: "icc", InstallDir: "/opt/install", SourceDir: "/src"})
	assert.Contains(t, b.ConfigureCommand, "-DINTEL_CC=ON")
	assert.Contains(t, b.ConfigureCommand, "-DCMAKE_INSTALL_DIR=/opt/install")

	b = NewCommandBuilder(Params{Compiler: "cc", InstallDir: "/opt/install", SourceDir: "/src"})
	assert.Contains(t, b.ConfigureCommand, "-DINTEL_CC=OFF")
}
