package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soudok/soudok/internal/pdftext"
	"github.com/soudok/soudok/internal/sources/scrape"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [url]",
		Short: "Scrape reports from the web archive index page",
		Long: `Fetch an index page of report links, visit each linked page, download
the attached PDF and extract its text. Documents whose URN is already
stored are skipped, so re-running is safe.

Requires the pdftotext tool (poppler-utils) on PATH.

Examples:
  soudok scrape
  soudok scrape https://regina.kb.se/sou/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ""
			if len(args) > 0 {
				url = args[0]
			}
			return runScrape(cmd, url)
		},
	}
	return cmd
}

func runScrape(cmd *cobra.Command, url string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if url == "" {
		url = cfg.Scrape.URL
	}

	lock, err := acquireRunLock(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	adapter := scrape.New(st, pdftext.NewPoppler(), nil)
	adapter.URNHost = cfg.Scrape.URNHost
	adapter.Concurrency = cfg.Scrape.Concurrency

	res, err := adapter.Run(cmd.Context(), url)
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scraped %d new documents (%d skipped)\n",
		res.Inserted, res.Skipped)
	return nil
}
