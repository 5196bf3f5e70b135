package main

import (
	"github.com/spf13/cobra"

	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/repository"
)

func newCreateCmd(a *app) *cobra.Command {
	var uid string

	cmd := &cobra.Command{
		Use:   "create <collection> <body>",
		Short: "Create a document from a YAML or JSON body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := parseBody(args[1])
			if err != nil {
				return err
			}
			repo, err := a.repo(args[0])
			if err != nil {
				return err
			}

			var doc repository.Document[document.Fields]
			if cmd.Flags().Changed("uid") {
				doc, err = repo.CreateWithUID(cmd.Context(), uid, body)
			} else {
				doc, err = repo.Create(cmd.Context(), body)
			}
			if err != nil {
				return err
			}
			return a.write(doc)
		},
	}

	cmd.Flags().StringVar(&uid, "uid", "", "Document uid (generated when omitted)")
	return cmd
}
