package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var requiredOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed (or, with --required, explicitly requested) features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cmd)
			if err != nil {
				return err
			}
			ids := e.ListInstalled()
			if requiredOnly {
				ids = e.ListRequired()
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&requiredOnly, "required", false, "list the explicitly required set instead of the resolved installed set")
	return cmd
}
