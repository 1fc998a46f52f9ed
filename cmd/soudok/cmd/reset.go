package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset-index",
		Short: "Destroy and recreate the search index",
		Long: `Destroy the search index and recreate it empty. The metadata store is
untouched; run 'soudok ingest --reindex' afterwards to rebuild the
index from stored documents.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReset(cmd, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}

func runReset(cmd *cobra.Command, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !force {
		fmt.Fprintf(cmd.OutOrStdout(), "This deletes the search index at %s. Continue? [y/N] ", cfg.Paths.Index)
		var answer string
		_, _ = fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
			return nil
		}
	}

	lock, err := acquireRunLock(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	eng := openEngine(cfg)
	defer func() { _ = eng.Close() }()

	if err := eng.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Index reset. Run 'soudok ingest --reindex' to rebuild it.")
	return nil
}
