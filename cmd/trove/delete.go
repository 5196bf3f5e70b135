package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <uid>",
		Short: "Delete a document",
		Long:  `Delete removes a document. Deleting a missing document succeeds.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repo(args[0])
			if err != nil {
				return err
			}
			if err := repo.Delete(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Document deleted: %s\n", args[1])
			return nil
		},
	}
}
