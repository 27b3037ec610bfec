package configuration

import (
	"time"
)

type FlotillaConfig struct {
	// Port on which prometheus metrics are exposed. 0 disables the listener.
	MetricsPort uint16
	// File that receives one PASSED/FAILED line per finished run.
	ReportFile string
	// Directory under which failure artifacts are preserved.
	SaveDir string

	Scheduler SchedulerConfig
	Tests     TestsConfig
	Build     BuildConfig
	Upgrade   UpgradeConfig
}

type SchedulerConfig struct {
	// Number of concurrent workers pulling jobs from the backlog.
	Workers int
	// Maximum number of large jobs running at once, to keep the host from
	// swapping. 0 disables large jobs entirely.
	MaxLarge int
}

type TestsConfig struct {
	// Top of the storage engine tree.
	SourceDir string
	// Build tree; test binaries live under <BuildDir>/src/tests.
	// Defaults to <SourceDir>/build.
	BuildDir string
	// Install tree; engine shared libraries live under <InstallDir>/lib.
	// Defaults to <SourceDir>/install.
	InstallDir string

	// Stress test executables, each run as create+stress.
	StressTests []string
	// Crash recovery executables, each run as create, stress-until-crash,
	// then recover.
	RecoverTests []string

	// Row counts to test with. Each size is combined with two cachetable
	// sizes: one sized to the table and one fixed at 1GB.
	TableSizes []int64
	// Jobs with a table size at or above this count against MaxLarge.
	LargeTableSize int64

	// How long each execute phase stresses the environment.
	TestDuration time.Duration

	// Optional path to a jemalloc shared library forced into children via
	// LD_PRELOAD.
	Jemalloc string

	// Run the ordinary, non-upgrade variants of each test.
	RunNonUpgrade bool
}

type BuildConfig struct {
	// Skip the sync-and-build step at startup.
	Skip bool
	// How long a scheduler cycle runs before pausing to rebuild and refresh
	// revision metadata. 0 means cycles never pause.
	RebuildPeriod time.Duration
	// Compiler probed before building. "icc" additionally switches the
	// build configuration to the Intel toolchain.
	Compiler string
	// Command that syncs SourceDir with the upstream SCM.
	SyncCommand []string
	// Command whose trimmed stdout is the current revision of SourceDir.
	RevisionCommand []string
}

type UpgradeConfig struct {
	// Run upgrade variants seeded from environments written by old releases.
	Run bool
	// Run the execute phase of upgrade variants twice: once to upgrade,
	// once to verify the upgrade left the environment healthy.
	Double bool
	// Old release versions to seed environments from. Each must have a
	// directory under OldEnvironmentsDir.
	OldVersions []string
	// Directory containing one subdirectory per old version, which in turn
	// hold savedpristine-<tsize>-dir and savedstressed-<tsize>-dir trees.
	OldEnvironmentsDir string

	// Tests that never run upgrade variants because they cannot work on
	// existing environments.
	SkipUpgradeTests []string
	// Tests that cannot run on previously stressed environments.
	SkipStressedSeedTests []string
}
