package configuration

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/flotillaproject/flotilla/internal/common/fleeterrors"
)

// Validate checks that the configuration describes a runnable fleet.
func (c *FlotillaConfig) Validate() error {
	if c.Scheduler.Workers < 1 {
		return invalid("scheduler.workers", c.Scheduler.Workers, "need at least one worker")
	}
	if c.Scheduler.MaxLarge < 0 {
		return invalid("scheduler.maxLarge", c.Scheduler.MaxLarge, "cannot be negative")
	}
	if c.Tests.TestDuration <= 0 {
		return invalid("tests.testDuration", c.Tests.TestDuration, "runs need a positive duration")
	}
	if len(c.Tests.TableSizes) == 0 {
		return invalid("tests.tableSizes", c.Tests.TableSizes, "need at least one table size")
	}
	if len(c.Tests.StressTests)+len(c.Tests.RecoverTests) == 0 {
		return invalid("tests.stressTests", c.Tests.StressTests, "no test executables configured")
	}
	if !c.Tests.RunNonUpgrade && !c.Upgrade.Run {
		return invalid("tests.runNonUpgrade", c.Tests.RunNonUpgrade, "both non-upgrade and upgrade runs are disabled, nothing to do")
	}
	if c.ReportFile == "" {
		return invalid("reportFile", c.ReportFile, "a report file is required")
	}
	if c.SaveDir == "" {
		return invalid("saveDir", c.SaveDir, "a failure archive directory is required")
	}
	if c.Upgrade.Run {
		if len(c.Upgrade.OldVersions) == 0 {
			return invalid("upgrade.oldVersions", c.Upgrade.OldVersions, "upgrade runs need at least one old version")
		}
		if !isDir(c.Upgrade.OldEnvironmentsDir) {
			return invalid("upgrade.oldEnvironmentsDir", c.Upgrade.OldEnvironmentsDir, "must be an existing directory when upgrade runs are enabled")
		}
		for _, version := range c.Upgrade.OldVersions {
			if dir := filepath.Join(c.Upgrade.OldEnvironmentsDir, version); !isDir(dir) {
				return invalid("upgrade.oldVersions", version, "no environments directory for this version")
			}
		}
	}
	return nil
}

func invalid(name string, value interface{}, message string) error {
	return errors.WithStack(&fleeterrors.ErrInvalidArgument{
		Name:    name,
		Value:   value,
		Message: message,
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
