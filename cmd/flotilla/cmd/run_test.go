package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotillaproject/flotilla/internal/flotilla/configuration"
)

func TestApplyFlagsOverridesConfig(t *testing.T) {
	cmd := runCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--jobs", "3",
		"--max-large", "1",
		"--test-time", "90s",
		"--cc", "gcc",
		"--skip-build",
		"--add-test", "test_stress_openclose.tdb",
		"--skip-non-upgrade",
		"--run-upgrade",
		"--add-old-version", "5.2.7",
		"--add-old-version", "6.0.0",
		"--old-environments-dir", "/data/old-envs",
		"--metrics-port", "9000",
	}))

	config := configuration.Default()
	require.NoError(t, applyFlags(cmd.Flags(), config))

	assert.Equal(t, 3, config.Scheduler.Workers)
	assert.Equal(t, 1, config.Scheduler.MaxLarge)
	assert.Equal(t, 90*time.Second, config.Tests.TestDuration)
	assert.Equal(t, "gcc", config.Build.Compiler)
	assert.True(t, config.Build.Skip)
	assert.False(t, config.Tests.RunNonUpgrade)
	assert.True(t, config.Upgrade.Run)
	assert.Equal(t, []string{"5.2.7", "6.0.0"}, config.Upgrade.OldVersions)
	assert.Equal(t, "/data/old-envs", config.Upgrade.OldEnvironmentsDir)
	assert.Equal(t, uint16(9000), config.MetricsPort)

	// added tests extend the default set instead of replacing it
	assert.Contains(t, config.Tests.StressTests, "test_stress1.tdb")
	assert.Contains(t, config.Tests.StressTests, "test_stress_openclose.tdb")
}

func TestApplyFlagsLeavesDefaultsAlone(t *testing.T) {
	cmd := runCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	config := configuration.Default()
	require.NoError(t, applyFlags(cmd.Flags(), config))
	assert.Equal(t, configuration.Default(), config)
}
