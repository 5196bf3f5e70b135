package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/trove/clause"
)

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <collection>",
		Short: "Delete every document of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repo(args[0])
			if err != nil {
				return err
			}
			docs, err := repo.Find(cmd.Context(), clause.Filter{})
			if err != nil {
				return err
			}
			for _, doc := range docs {
				if err := repo.Delete(cmd.Context(), doc.UID); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %d documents from %s\n", len(docs), args[0])
			return nil
		},
	}
}
