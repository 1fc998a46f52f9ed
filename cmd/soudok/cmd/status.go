package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store and index document counts",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(cfg.Paths.Database); err != nil {
		fmt.Fprintf(out, "No metadata store at %s. Run 'soudok acquire' first.\n", cfg.Paths.Database)
		return nil
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("read store stats: %w", err)
	}

	fmt.Fprintf(out, "Documents stored:  %d\n", stats.Total)
	fmt.Fprintf(out, "Pending indexing:  %d\n", stats.Pending)

	if _, err := os.Stat(cfg.Paths.Index); err == nil {
		eng := openEngine(cfg)
		defer func() { _ = eng.Close() }()
		if err := eng.EnsureIndex(cmd.Context()); err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		count, err := eng.DocCount()
		if err != nil {
			return fmt.Errorf("read index count: %w", err)
		}
		fmt.Fprintf(out, "Documents indexed: %d\n", count)
	} else {
		fmt.Fprintln(out, "Documents indexed: 0 (no index yet)")
	}
	return nil
}
