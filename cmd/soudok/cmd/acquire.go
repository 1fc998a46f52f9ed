package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/soudok/soudok/internal/document"
	"github.com/soudok/soudok/internal/sources/feed"
	"github.com/soudok/soudok/internal/titles"
)

func newAcquireCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acquire [url]",
		Short: "Download the bulk metadata feed and store new documents",
		Long: `Download a compressed archive of per-document metadata bundles and
store every document not already present. Re-running against the same
feed is safe: existing documents are skipped by natural key.

Examples:
  soudok acquire
  soudok acquire https://data.riksdagen.se/dataset/dokument/sou-2004-.json.zip`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ""
			if len(args) > 0 {
				url = args[0]
			}
			return runAcquire(cmd, url)
		},
	}
	return cmd
}

func runAcquire(cmd *cobra.Command, url string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if url == "" {
		url = cfg.Feed.URL
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

	adapter := feed.New(st, loadTitles(cfg.Paths.Titles), nil)
	res, err := adapter.Run(cmd.Context(), url)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Acquired %d new documents (%d skipped, %d dropped)\n",
		res.Inserted, res.Skipped, res.Dropped)
	return nil
}

// loadTitles loads the backfill title index. A missing file is fine;
// backfill lookups then always miss and primary titles are kept.
func loadTitles(path string) document.Titles {
	if _, err := os.Stat(path); err != nil {
		return titles.Empty()
	}
	idx, err := titles.Load(path)
	if err != nil {
		slog.Warn("title_index_unreadable", slog.String("path", path), slog.String("error", err.Error()))
		return titles.Empty()
	}
	return idx
}
