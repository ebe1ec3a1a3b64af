package main

import (
	"github.com/spf13/cobra"

	"github.com/faciam-dev/docform/internal/logger"
	"github.com/faciam-dev/docform/internal/util"
	"github.com/faciam-dev/docform/sdk"
	"github.com/faciam-dev/docform/sdk/client"
)

func newSearchCmd() *cobra.Command {
	var (
		limit   int
		filters []string
		like    []string
		orderBy string
	)
	cmd := &cobra.Command{
		Use:   "search <doctype> [text]",
		Short: "List documents of a doctype",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := sdk.SearchQuery{OrderBy: orderBy, Limit: util.SanitizeLimit(limit)}
			if len(args) == 2 && args[1] != "" {
				q.Filters = append(q.Filters, sdk.Filter{Field: "name", Op: "like", Value: "%" + args[1] + "%"})
			}
			for _, s := range filters {
				k, v, err := splitAssignment(s)
				if err != nil {
					return err
				}
				q.Filters = append(q.Filters, sdk.Filter{Field: k, Op: "=", Value: v})
			}
			for _, s := range like {
				k, v, err := splitAssignment(s)
				if err != nil {
					return err
				}
				q.Filters = append(q.Filters, sdk.Filter{Field: k, Op: "like", Value: v})
			}

			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			q.Fields = client.DefaultListFields
			if s, err := sess.client.GetDocTypeMetadata(cmd.Context(), args[0]); err != nil {
				logger.L.Warnw("list columns unavailable, using defaults", "doctype", args[0], "error", err)
			} else {
				q.Fields = client.ListFields(s)
			}

			rs, err := sess.client.SearchDocuments(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			return printRecords(cmd, q.Fields, rs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of documents")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Equality filter: field=value (repeatable)")
	cmd.Flags().StringArrayVar(&like, "like", nil, "Pattern filter: field=pattern, % is a wildcard (repeatable)")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "Sort clause, e.g. \"modified desc\"")
	return cmd
}
