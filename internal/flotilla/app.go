// Package flotilla wires configuration, building, scheduling, and reporting
// into the long running fleet driver.
package flotilla

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
	"golang.org/x/sys/unix"

	"github.com/flotillaproject/flotilla/internal/common"
	"github.com/flotillaproject/flotilla/internal/common/logging"
	"github.com/flotillaproject/flotilla/internal/common/util"
	"github.com/flotillaproject/flotilla/internal/flotilla/archive"
	"github.com/flotillaproject/flotilla/internal/flotilla/configuration"
	"github.com/flotillaproject/flotilla/internal/flotilla/envcache"
	"github.com/flotillaproject/flotilla/internal/flotilla/job"
	"github.com/flotillaproject/flotilla/internal/flotilla/rebuild"
	"github.com/flotillaproject/flotilla/internal/flotilla/report"
	"github.com/flotillaproject/flotilla/internal/flotilla/runner"
	"github.com/flotillaproject/flotilla/internal/flotilla/scheduler"
)

// Run drives the fleet until ctx is cancelled or the harness breaks: build
// the system under test, stress it for one cycle, rebuild, repeat.
func Run(ctx context.Context, config *configuration.FlotillaConfig) error {
	unlimitCoreDumps()
	if config.MetricsPort != 0 {
		log.AddHook(promrus.MustNewPrometheusHook())
		shutdownMetricServer := common.ServeMetrics(config.MetricsPort)
		defer shutdownMetricServer()
	}

	builder := rebuild.NewCommandBuilder(rebuild.Params{
		SourceDir:       config.Tests.SourceDir,
		BuildDir:        config.Tests.BuildDir,
		InstallDir:      config.Tests.InstallDir,
		Compiler:        config.Build.Compiler,
		Targets:         append(append([]string{}, config.Tests.StressTests...), config.Tests.RecoverTests...),
		SyncCommand:     config.Build.SyncCommand,
		RevisionCommand: config.Build.RevisionCommand,
	})
	if config.Build.Skip {
		log.Info("skipping the initial build")
	} else if err := builder.Build(ctx); err != nil {
		return err
	}
	revision := refreshRevision(ctx, builder, "unknown")

	reporter, err := report.Open(config.ReportFile)
	if err != nil {
		return err
	}
	defer util.CloseResource("report log", reporter)
	archiver, err := archive.New(config.SaveDir)
	if err != nil {
		return err
	}
	log.Infof("saving pass/fail records to %s", config.ReportFile)
	log.Infof("saving failure environments to %s", config.SaveDir)

	rng := util.NewThreadsafeRand(time.Now().UnixNano())
	jobs := job.BuildList(job.ListParams{
		StressTests:           config.Tests.StressTests,
		RecoverTests:          config.Tests.RecoverTests,
		TableSizes:            config.Tests.TableSizes,
		LargeTableSize:        config.Tests.LargeTableSize,
		RunNonUpgrade:         config.Tests.RunNonUpgrade,
		RunUpgrade:            config.Upgrade.Run,
		DoubleUpgrade:         config.Upgrade.Double,
		OldVersions:           config.Upgrade.OldVersions,
		SkipUpgradeTests:      config.Upgrade.SkipUpgradeTests,
		SkipStressedSeedTests: config.Upgrade.SkipStressedSeedTests,
	}, rng)
	log.Infof("generated %d jobs", len(jobs))

	run := runner.New(runner.Config{
		BuildDir:           config.Tests.BuildDir,
		InstallDir:         config.Tests.InstallDir,
		OldEnvironmentsDir: config.Upgrade.OldEnvironmentsDir,
		TestDuration:       config.Tests.TestDuration,
		Jemalloc:           config.Tests.Jemalloc,
	}, runner.NewSpawner(), archiver,
		envcache.New(filepath.Join(config.Tests.BuildDir, "src", "tests")), rng)

	sched := scheduler.New(run, reporter, jobs, config.Scheduler.Workers, config.Scheduler.MaxLarge, rng)
	sched.SetRevision(revision)

	for {
		cycle := uuid.NewString()
		log.Infof("starting cycle %s on revision %s", cycle, sched.Revision())
		if err := sched.RunCycle(ctx, config.Build.RebuildPeriod); err != nil {
			return err
		}
		passed, failed := sched.Totals()
		if ctx.Err() != nil {
			log.Infof("[PASS=%d FAIL=%d] shutting down", passed, failed)
			return nil
		}
		log.Infof("[PASS=%d FAIL=%d] cycle %s complete, rebuilding", passed, failed, cycle)
		if err := builder.Build(ctx); err != nil {
			return err
		}
		sched.SetRevision(refreshRevision(ctx, builder, sched.Revision()))
	}
}

// refreshRevision asks the source tree for its revision. Failing to read it
// is not worth stopping the fleet over, so on error the fallback is kept.
func refreshRevision(ctx context.Context, builder rebuild.Builder, fallback string) string {
	rev, err := builder.Revision(ctx)
	if err != nil {
		logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).
			Warnf("could not determine the revision, keeping %q", fallback)
		return fallback
	}
	log.Infof("using sources at revision %s", rev)
	return rev
}

// unlimitCoreDumps raises the core file limit so crashing children leave
// cores behind for postmortems. Children inherit the limit.
func unlimitCoreDumps() {
	limit := &unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY}
	if err := unix.Setrlimit(unix.RLIMIT_CORE, limit); err != nil {
		log.Warnf("could not raise the core dump limit: %v", err)
	}
}
