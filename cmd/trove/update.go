package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/trove/repository"
)

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <collection> <uid> <body>",
		Short: "Merge a YAML or JSON body into a document",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := parseBody(args[2])
			if err != nil {
				return err
			}
			repo, err := a.repo(args[0])
			if err != nil {
				return err
			}
			doc, err := repo.Update(cmd.Context(), args[1], body)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("%w: %s", repository.ErrNotFound, args[1])
			}
			return a.write(*doc)
		},
	}
}
