package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soudok/soudok/internal/ingest"
)

func newIngestCmd() *cobra.Command {
	var reindex bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index pending documents into the search engine",
		Long: `Stream pending documents from the metadata store to the search index
in bounded batches. Documents the engine rejects stay pending and are
retried on the next run.

With --reindex every stored document is resubmitted regardless of
status, which is needed after an index schema change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, reindex)
		},
	}

	cmd.Flags().BoolVar(&reindex, "reindex", false, "Resubmit every document, not just pending ones")

	return cmd
}

func runIngest(cmd *cobra.Command, reindex bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	eng := openEngine(cfg)
	defer func() { _ = eng.Close() }()

	res, err := ingest.New(st, eng, cfg.Ingest.BatchSize).Run(cmd.Context(), reindex)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	if res.Indexed == 0 && res.Failed == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to index")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents in %s", res.Indexed, res.Duration.Round(time.Millisecond))
	if res.Failed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), " (%d failed, left pending)", res.Failed)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
