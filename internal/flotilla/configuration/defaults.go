package configuration

import (
	"path/filepath"
	"time"
)

// Default returns the stock configuration: the standard stress and recover
// executables, eight workers, ten minute runs, daily rebuilds.
func Default() *FlotillaConfig {
	return &FlotillaConfig{
		MetricsPort: 9201,
		ReportFile:  "/tmp/flotilla.report.log",
		SaveDir:     "/tmp/flotilla.failures",
		Scheduler: SchedulerConfig{
			Workers:  8,
			MaxLarge: 2,
		},
		Tests: TestsConfig{
			SourceDir:      ".",
			StressTests:    []string{"test_stress1.tdb", "test_stress5.tdb", "test_stress6.tdb"},
			RecoverTests:   []string{"recover-test_stress1.tdb", "recover-test_stress2.tdb", "recover-test_stress3.tdb"},
			TableSizes:     []int64{2000, 200000, 50000000},
			LargeTableSize: 10000000,
			TestDuration:   10 * time.Minute,
			RunNonUpgrade:  true,
		},
		Build: BuildConfig{
			RebuildPeriod:   24 * time.Hour,
			Compiler:        "cc",
			SyncCommand:     []string{"git", "pull", "--ff-only"},
			RevisionCommand: []string{"git", "rev-parse", "--short", "HEAD"},
		},
		Upgrade: UpgradeConfig{
			SkipUpgradeTests:      []string{"test_stress_openclose.tdb"},
			SkipStressedSeedTests: []string{"test_stress4.tdb"},
		},
	}
}

// Complete fills in values derived from others once flags and config files
// have been merged.
func (c *FlotillaConfig) Complete() {
	if c.Tests.BuildDir == "" {
		c.Tests.BuildDir = filepath.Join(c.Tests.SourceDir, "build")
	}
	if c.Tests.InstallDir == "" {
		c.Tests.InstallDir = filepath.Join(c.Tests.SourceDir, "install")
	}
}
