package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRepoAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repo-add <uri>",
		Short: "Add a repository document as a catalog root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cmd)
			if err != nil {
				return err
			}
			if err := e.AddRepository(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added repository: %s\n", args[0])
			return nil
		},
	}
}

func newRepoRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repo-remove <uri>",
		Short: "Remove a repository root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cmd)
			if err != nil {
				return err
			}
			if err := e.RemoveRepository(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed repository: %s\n", args[0])
			return nil
		},
	}
}
