package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flotilla",
		Short: "flotilla runs a fleet of stress tests against a storage engine build.",
		Long: `flotilla runs a fleet of stress tests against a storage engine build.

A fixed pool of workers keeps drawing jobs from a shared backlog; finished
jobs are requeued, so the fleet runs until stopped. Once per rebuild period
the workers pause while the engine is synced and rebuilt, then carry on
against the fresh build. Failing runs leave their environment, output,
binary, and libraries behind for postmortem analysis.

Persistent config can be saved in a config file so it doesn't have to be
specified on every invocation. The location of this file can be passed in
using the --config argument. If not provided, $HOME/.flotilla.yaml is used.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				log.SetLevel(log.DebugLevel)
			} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				log.SetLevel(log.InfoLevel)
			}
		},
	}
	cmd.PersistentFlags().String("config", "", "path to a configuration file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "show build status, passing runs, and other info")
	cmd.PersistentFlags().BoolP("debug", "d", false, "show debugging info")

	cmd.AddCommand(
		runCmd(),
		versionCmd(),
	)
	return cmd
}
