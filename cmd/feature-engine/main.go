// Command feature-engine is a thin CLI shell around pkg/engine, in the
// shape of the teacher's cmd/operator-cli: a cobra root command wiring
// debug logging in PreRunE, with subcommands that each construct an
// Engine and call the corresponding facade method.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "feature-engine",
		Short: "feature-engine",
		Long:  `A CLI for installing and uninstalling catalog features on a live module host.`,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
	}

	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	root.PersistentFlags().Bool("verbose", false, "mirror engine log lines to stdout for the duration of each deployment call")
	root.PersistentFlags().String("state", "feature-engine-state.yaml", "path to the persisted engine state file")
	root.PersistentFlags().String("repo-root", ".", "local directory bundle mvn: locations resolve under")
	root.PersistentFlags().StringSlice("catalog", nil, "repository document(s) to load on startup (may be repeated)")

	root.AddCommand(
		newInstallCmd(),
		newUninstallCmd(),
		newListCmd(),
		newRepoAddCmd(),
		newRepoRemoveCmd(),
	)
	return root
}
