package main

import (
	"github.com/spf13/cobra"

	"github.com/jacentio/trove/clause"
	"github.com/jacentio/trove/repository"
)

func newFindCmd(a *app) *cobra.Command {
	var (
		wheres    []string
		whereJSON string
		limit     int
		orderBy   string
	)

	cmd := &cobra.Command{
		Use:   "find <collection>",
		Short: "Print documents matching a filter",
		Long: `Find prints every document of the collection matching all conditions,
one JSON document per line.

  trove find users --where "age >= 30" --where "tags array-contains admin"
  trove find users --where-json '{"address": {"city": "Oslo"}}' --order-by age:desc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(wheres, whereJSON)
			if err != nil {
				return err
			}

			opts := []repository.FindOption{repository.WithLimit(limit)}
			if orderBy != "" {
				order, err := clause.ParseOrder(orderBy)
				if err != nil {
					return err
				}
				opts = append(opts, repository.WithOrder(order))
			}

			repo, err := a.repo(args[0])
			if err != nil {
				return err
			}
			docs, err := repo.Find(cmd.Context(), filter, opts...)
			if err != nil {
				return err
			}
			for _, doc := range docs {
				if err := a.write(doc); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&wheres, "where", nil, `Condition "path op value" (repeatable)`)
	cmd.Flags().StringVar(&whereJSON, "where-json", "", "Filter object in JSON or YAML")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of documents (0 = no limit)")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "Order by path[:asc|desc]")
	return cmd
}
