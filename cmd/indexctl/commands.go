package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/search"
)

func newRebuildCmd() *cobra.Command {
	var tables []string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index from the record store",
		Long: `Rebuild reloads records from the store and replaces the index snapshot.

Examples:
  # Rebuild everything
  indexctl rebuild

  # Rebuild only tasks and team members
  indexctl rebuild --table task --table team`,
		RunE: func(cmd *cobra.Command, args []string) error {
			types := make([]records.Type, 0, len(tables))
			for _, name := range tables {
				rt, err := records.ParseType(name)
				if err != nil {
					return err
				}
				types = append(types, rt)
			}
			a, ctx, done, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer done()

			start := time.Now()
			if err := a.Index.Rebuild(ctx, types...); err != nil {
				return err
			}
			stats := a.Index.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d records in %s\n", stats.TotalRecords, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tables, "table", nil, "record type to rebuild (task, team, legislation); repeatable")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, done, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer done()
			return printJSON(cmd.OutOrStdout(), a.Index.Stats())
		},
	}
}

type queryFlags struct {
	scope     string
	operator  string
	sortBy    string
	sortOrder string
	limit     int
	offset    int
	filters   []string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scope, "scope", "all", "all, tasks, team, legislation or documents")
	cmd.Flags().StringVar(&f.operator, "op", "or", "or, and, not or exact")
	cmd.Flags().StringVar(&f.sortBy, "sort-by", "", "relevance, date, title or priority")
	cmd.Flags().StringVar(&f.sortOrder, "sort-order", "", "asc or desc")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "page size (service default when 0)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "results to skip")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "field:op:value filter; repeatable")
}

func (f *queryFlags) query(text string) (search.Query, error) {
	q := search.Query{
		Text:      text,
		SortBy:    strings.ToLower(f.sortBy),
		SortOrder: strings.ToLower(f.sortOrder),
		Limit:     f.limit,
		Offset:    f.offset,
	}
	var err error
	if q.Scope, err = search.ParseScope(f.scope); err != nil {
		return q, err
	}
	if q.Operator, err = search.ParseOperator(f.operator); err != nil {
		return q, err
	}
	if f.limit < 0 || f.offset < 0 {
		return q, fmt.Errorf("limit and offset must not be negative")
	}
	for _, raw := range f.filters {
		filter, err := search.ParseFilter(raw)
		if err != nil {
			return q, err
		}
		q.Filters = append(q.Filters, filter)
	}
	return q, nil
}

func newSearchCmd() *cobra.Command {
	var qf queryFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a query and print the results as JSON",
		Long: `Search runs a query through the same pipeline searchd uses.

Examples:
  indexctl search "data protection" --scope tasks --op and
  indexctl search gdpr --filter status:=:Open --sort-by priority`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.query(strings.Join(args, " "))
			if err != nil {
				return err
			}
			a, ctx, done, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer done()
			return printJSON(cmd.OutOrStdout(), a.Search.Execute(ctx, q))
		},
	}
	qf.register(cmd)
	return cmd
}

func newSuggestCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "suggest <partial>",
		Short: "Print completions for a partial query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := search.ParseScope(scope)
			if err != nil {
				return err
			}
			a, ctx, done, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer done()
			for _, s := range a.Search.Suggest(ctx, args[0], sc) {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "all", "all, tasks, team or legislation")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		qf     queryFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "export <query>",
		Short: "Export every match of a query to a file",
		Long: `Export writes all matches (up to the configured export limit) to the
export directory and prints the file path.

Examples:
  indexctl export gdpr --scope tasks --format excel
  indexctl export "fire safety" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.query(strings.Join(args, " "))
			if err != nil {
				return err
			}
			a, ctx, done, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer done()
			path, err := a.Search.Export(ctx, q, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	qf.register(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "csv, json or excel")
	return cmd
}
