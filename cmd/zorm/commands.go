package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/jedib0t/go-pretty/table"
	"github.com/rezakhademix/zorm"
	"github.com/spf13/cobra"
)

func newModelsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print every model with its relations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, closeFn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			conn.PrintSchematic(cmd.OutOrStdout())
			return nil
		},
	}
}

func newExplainCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <model> <id> <relation>",
		Short: "Show what a relation of one record resolves to",
		Long: `Explain loads one record and resolves a relation on it without
running the resulting query. Lazy relations print their SQL and arguments;
single relations print the fetched record.`,
		Example: `  zorm explain Website 7 upvotes --config zorm.yaml
  zorm explain Tag 3 projects --dsn blog.db`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAssociation(cmd, a, args, func(w io.Writer, assoc *zorm.Association) error {
				fmt.Fprintf(w, "kind: %s\n", assoc.Kind)

				switch assoc.Kind {
				case zorm.AssociationMany:
					query, queryArgs, err := assoc.Query.ToSql()
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "sql: %s\n", query)
					fmt.Fprintf(w, "args: %v\n", queryArgs)
				case zorm.AssociationOne:
					renderRecords(w, []*zorm.Record{assoc.Record})
				case zorm.AssociationValue:
					fmt.Fprintf(w, "value: %v\n", assoc.Value)
				}
				return nil
			})
		},
	}
}

func newResolveCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "resolve <model> <id> <relation>",
		Short:   "Resolve a relation of one record and print the related rows",
		Example: `  zorm resolve Project 1 tags --config zorm.yaml`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAssociation(cmd, a, args, func(w io.Writer, assoc *zorm.Association) error {
				if assoc.Kind == zorm.AssociationValue {
					fmt.Fprintf(w, "%v\n", assoc.Value)
					return nil
				}
				if assoc.Kind == zorm.AssociationMany && limit > 0 {
					assoc.Query.Limit(limit)
				}

				records, err := assoc.All(cmd.Context())
				if err != nil {
					return err
				}
				renderRecords(w, records)
				fmt.Fprintf(w, "(%d rows)\n", len(records))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rows to print (0 for all)")
	return cmd
}

// withAssociation connects, loads args[0] by id args[1] and resolves args[2].
func withAssociation(cmd *cobra.Command, a *app, args []string, fn func(io.Writer, *zorm.Association) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	conn, closeFn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	rec, err := conn.Find(ctx, args[0], parseID(args[1]))
	if err != nil {
		return fmt.Errorf("%s %s: %w", args[0], args[1], err)
	}

	assoc, err := rec.Relation(ctx, args[2])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if !assoc.Found() {
		fmt.Fprintln(w, "not found")
		return nil
	}
	return fn(w, assoc)
}

// parseID keeps numeric ids numeric so drivers bind them as integers.
func parseID(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// renderRecords prints records as a table whose columns are the union of
// every record's attributes, sorted.
func renderRecords(w io.Writer, records []*zorm.Record) {
	var columns []string
	for _, rec := range records {
		for column := range rec.Attributes() {
			if !slices.Contains(columns, column) {
				columns = append(columns, column)
			}
		}
	}
	slices.Sort(columns)

	tw := table.NewWriter()
	header := make(table.Row, 0, len(columns))
	for _, column := range columns {
		header = append(header, column)
	}
	tw.AppendHeader(header)

	for _, rec := range records {
		row := make(table.Row, 0, len(columns))
		for _, column := range columns {
			row = append(row, rec.Get(column))
		}
		tw.AppendRow(row)
	}

	fmt.Fprintln(w, tw.Render())
}
