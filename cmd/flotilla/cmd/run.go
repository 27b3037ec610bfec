package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/flotillaproject/flotilla/internal/common/app"
	"github.com/flotillaproject/flotilla/internal/flotilla"
	"github.com/flotillaproject/flotilla/internal/flotilla/configuration"
)

// runCmd starts the fleet and blocks until it stops or fails.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the stress test fleet until stopped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return flotilla.Run(app.CreateContextWithShutdown(), config)
		},
	}

	flags := cmd.Flags()
	flags.String("source-dir", "", "top of the storage engine source tree")
	flags.String("build-dir", "", "build tree (defaults to <source-dir>/build)")
	flags.String("install-dir", "", "install tree whose lib/ the tests load (defaults to <source-dir>/install)")
	flags.StringP("report-file", "l", "", "where to append pass/fail records")
	flags.StringP("save-dir", "s", "", "where to save environments and extra data of failed runs")
	flags.IntP("jobs", "j", 0, "how many concurrent workers to run")
	flags.Int("max-large", 0, "how many large jobs may run concurrently (helps prevent swapping)")
	flags.DurationP("test-time", "t", 0, "how long to run each stress phase")
	flags.Bool("skip-build", false, "skip the sync and build before the first cycle")
	flags.Duration("rebuild-period", 0, "how long between rebuilds of the engine, 0 means never rebuild")
	flags.String("cc", "", "compiler the build is checked against")
	flags.String("jemalloc", "", "a libjemalloc.so to put in LD_PRELOAD of every test")
	flags.StringArray("add-test", nil, "add a stress test executable to the default set (repeatable)")
	flags.StringArray("add-recover-test", nil, "add a crash recovery test executable to the default set (repeatable)")
	flags.Bool("run-upgrade", false, "also run on environments saved from old releases")
	flags.Bool("skip-non-upgrade", false, "skip the jobs that do not involve upgrade")
	flags.Bool("double-upgrade", false, "run upgrade stress phases twice in a row")
	flags.StringArray("add-old-version", nil, "an old release to seed upgrade runs from (repeatable)")
	flags.String("old-environments-dir", "", "directory of saved old release environments, one subdirectory per version")
	flags.Uint16("metrics-port", 0, "port to serve prometheus metrics on, 0 disables the server")
	return cmd
}

// loadConfig layers defaults, the config file, and command line flags, then
// validates the result.
func loadConfig(cmd *cobra.Command) (*configuration.FlotillaConfig, error) {
	config := configuration.Default()
	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if err := configuration.Load(config, cfgFile); err != nil {
		return nil, err
	}
	if err := applyFlags(cmd.Flags(), config); err != nil {
		return nil, err
	}
	config.Complete()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
// Flags the user did not touch leave the file and default values alone.
func applyFlags(flags *pflag.FlagSet, config *configuration.FlotillaConfig) error {
	var err error
	changed := func(name string) bool {
		return err == nil && flags.Changed(name)
	}

	if changed("report-file") {
		config.ReportFile, err = flags.GetString("report-file")
	}
	if changed("save-dir") {
		config.SaveDir, err = flags.GetString("save-dir")
	}
	if changed("metrics-port") {
		config.MetricsPort, err = flags.GetUint16("metrics-port")
	}
	if changed("jobs") {
		config.Scheduler.Workers, err = flags.GetInt("jobs")
	}
	if changed("max-large") {
		config.Scheduler.MaxLarge, err = flags.GetInt("max-large")
	}
	if changed("source-dir") {
		config.Tests.SourceDir, err = flags.GetString("source-dir")
	}
	if changed("build-dir") {
		config.Tests.BuildDir, err = flags.GetString("build-dir")
	}
	if changed("install-dir") {
		config.Tests.InstallDir, err = flags.GetString("install-dir")
	}
	if changed("test-time") {
		config.Tests.TestDuration, err = flags.GetDuration("test-time")
	}
	if changed("jemalloc") {
		config.Tests.Jemalloc, err = flags.GetString("jemalloc")
	}
	if changed("skip-non-upgrade") {
		var skip bool
		if skip, err = flags.GetBool("skip-non-upgrade"); err == nil {
			config.Tests.RunNonUpgrade = !skip
		}
	}
	if changed("add-test") {
		var tests []string
		if tests, err = flags.GetStringArray("add-test"); err == nil {
			config.Tests.StressTests = append(config.Tests.StressTests, tests...)
		}
	}
	if changed("add-recover-test") {
		var tests []string
		if tests, err = flags.GetStringArray("add-recover-test"); err == nil {
			config.Tests.RecoverTests = append(config.Tests.RecoverTests, tests...)
		}
	}
	if changed("skip-build") {
		config.Build.Skip, err = flags.GetBool("skip-build")
	}
	if changed("rebuild-period") {
		config.Build.RebuildPeriod, err = flags.GetDuration("rebuild-period")
	}
	if changed("cc") {
		config.Build.Compiler, err = flags.GetString("cc")
	}
	if changed("run-upgrade") {
		config.Upgrade.Run, err = flags.GetBool("run-upgrade")
	}
	if changed("double-upgrade") {
		config.Upgrade.Double, err = flags.GetBool("double-upgrade")
	}
	if changed("add-old-version") {
		var versions []string
		if versions, err = flags.GetStringArray("add-old-version"); err == nil {
			config.Upgrade.OldVersions = append(config.Upgrade.OldVersions, versions...)
		}
	}
	if changed("old-environments-dir") {
		config.Upgrade.OldEnvironmentsDir, err = flags.GetString("old-environments-dir")
	}
	return err
}
