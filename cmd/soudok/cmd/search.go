package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soudok/soudok/internal/engine"
	"github.com/soudok/soudok/internal/query"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	sort   string
	years  []string
	page   int
	size   int
	format string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the report index",
		Long: `Search indexed reports by free text, with optional year filters.
An empty query lists everything in chronological order.

Sort fields: _score (relevance), number_sort (year and serial),
title_sort (title). Anything else falls back to relevance.

Examples:
  soudok search "skolans styrning"
  soudok search "järnväg" --year 1950-1959 --year 1960-1969
  soudok search --sort number_sort --page 2
  soudok search "pension" --format json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.sort, "sort", "", "Sort field: _score, number_sort, title_sort")
	cmd.Flags().StringSliceVar(&opts.years, "year", nil, "Filter by decade, e.g. 1950-1959 (repeatable)")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 1, "Result page (1-based)")
	cmd.Flags().IntVarP(&opts.size, "size", "n", 0, "Results per page (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, text string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng := openEngine(cfg)
	defer func() { _ = eng.Close() }()
	if err := eng.EnsureIndex(cmd.Context()); err != nil {
		return fmt.Errorf("open index: %w", err)
	}

	pageSize := opts.size
	if pageSize <= 0 {
		pageSize = cfg.Search.PageSize
	}

	res, err := query.New(eng).Search(cmd.Context(), &query.Params{
		Query:    text,
		Sort:     opts.sort,
		Years:    opts.years,
		Page:     opts.page,
		PageSize: pageSize,
	})
	if err != nil {
		if errors.Is(err, engine.ErrBadQuery) {
			return fmt.Errorf("%v\nValid year ranges: %s", err, yearRangeNames())
		}
		return fmt.Errorf("search: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(cmd, res)
	return nil
}

func printResult(cmd *cobra.Command, res *query.Result) {
	out := cmd.OutOrStdout()

	if res.Total == 0 {
		fmt.Fprintln(out, "No results")
		return
	}
	fmt.Fprintf(out, "%d results (page %d of %d)\n\n", res.Total, res.Page, res.TotalPages)

	for _, hit := range res.Hits {
		fmt.Fprintf(out, "  %s %d:%s  %s\n", strings.ToUpper(hit.DocType), hit.Year, hit.Number, hit.Title)
		if hit.URL != "" {
			fmt.Fprintf(out, "      %s\n", hit.URL)
		}
		for _, frag := range hit.Fragments["full_text"] {
			fmt.Fprintf(out, "      … %s …\n", strings.TrimSpace(frag))
		}
	}

	if len(res.Facets) > 0 {
		fmt.Fprintf(out, "\nBy decade:\n")
		for _, f := range res.Facets {
			fmt.Fprintf(out, "  %s  %d\n", f.Name, f.Count)
		}
	}
}

// yearRangeNames lists the valid --year values for error messages.
func yearRangeNames() string {
	var names []string
	for _, r := range query.DecadeRanges() {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
