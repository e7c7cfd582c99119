package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/da-price-monitor/pkg/storage"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect or prune archived bulletin documents",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived documents, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive()
		if err != nil {
			return err
		}
		files, err := archive.List(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), files)
	},
}

var archivePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete archived documents older than --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if olderThan <= 0 {
			return errors.New("--older-than must be positive")
		}

		archive, err := openArchive()
		if err != nil {
			return err
		}
		files, err := archive.List(cmd.Context())
		if err != nil {
			return err
		}

		cutoff := time.Now().Add(-olderThan)
		var removed int
		for _, f := range files {
			if !f.CreatedAt.Before(cutoff) {
				continue
			}
			if !dryRun {
				if err := archive.Delete(cmd.Context(), f.ID); err != nil {
					return fmt.Errorf("failed to delete %s: %w", f.ID, err)
				}
			}
			removed++
			logger.Info("pruned archived document",
				slog.String("id", f.ID.String()),
				slog.String("name", f.Name),
				slog.Time("created_at", f.CreatedAt),
				slog.Bool("dry_run", dryRun),
			)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d of %d documents\n", removed, len(files))
		return nil
	},
}

func init() {
	archivePruneCmd.Flags().Duration("older-than", 90*24*time.Hour, "delete documents archived before now minus this duration")
	archivePruneCmd.Flags().Bool("dry-run", false, "report what would be deleted without deleting")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archivePruneCmd)
}

func openArchive() (storage.Archive, error) {
	if cfg.Storage.ArchivePath == "" {
		return nil, errors.New("archive is disabled (ARCHIVE_PATH is empty)")
	}
	return storage.New(&storage.Config{Type: storage.StorageTypeLocal, LocalPath: cfg.Storage.ArchivePath})
}
