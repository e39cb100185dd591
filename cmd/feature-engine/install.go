package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInstallCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "install <name[/version]>...",
		Short: "Install one or more features",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if dryRun {
				plan, err := e.Plan(ctx, args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "install:\n")
				for _, r := range plan.ToInstall {
					fmt.Fprintf(cmd.OutOrStdout(), "  + %s\n", r.SymbolicName)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "update:\n")
				for _, u := range plan.ToUpdate {
					fmt.Fprintf(cmd.OutOrStdout(), "  ~ %s\n", u.Resource.SymbolicName)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "delete:\n")
				for _, m := range plan.ToDelete {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", m.SymbolicName())
				}
				return nil
			}

			if err := e.Install(ctx, args...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed: %v\n", args)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the deployment plan without executing it")
	return cmd
}
