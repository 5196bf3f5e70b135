package main

import (
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <uid>",
		Short: "Print a document by uid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repo(args[0])
			if err != nil {
				return err
			}
			doc, err := repo.FindByUIDOrFail(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return a.write(doc)
		},
	}
}
