package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/backup"
	"github.com/jamesainslie/modsync/pkg/modsync/config"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Manage backups of replaced files",
	Long: `Every install that replaces files first copies them into a timestamped
run directory under the backup directory (by default <mods-dir>/.modsync/backups).`,
}

var backupsListCmd = &cobra.Command{
	Use:   "list [mods-dir]",
	Short: "List backup runs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBackupsList,
}

var backupsPruneCmd = &cobra.Command{
	Use:   "prune [mods-dir]",
	Short: "Remove old backup runs",
	Long: `Move backup runs older than the retention period to the system trash.
When no trash is available they are deleted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackupsPrune,
}

var backupsOlderThan int

func init() {
	backupsPruneCmd.Flags().IntVar(&backupsOlderThan, "older-than", 0, "retention in days (default from config)")

	backupsCmd.AddCommand(backupsListCmd)
	backupsCmd.AddCommand(backupsPruneCmd)
	rootCmd.AddCommand(backupsCmd)
}

func backupStore(args []string) (*backup.Store, error) {
	dir, err := targetDir(args, 0)
	if err != nil {
		return nil, err
	}
	return backup.New(cfg.ResolveBackupDir(dir), time.Now)
}

func runBackupsList(cmd *cobra.Command, args []string) error {
	store, err := backupStore(args)
	if err != nil {
		return err
	}
	runs, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	return render(output.FromBackups(store.Root(), runs))
}

func runBackupsPrune(cmd *cobra.Command, args []string) error {
	store, err := backupStore(args)
	if err != nil {
		return err
	}

	days := backupsOlderThan
	if days <= 0 {
		days = cfg.Backup.RetentionDays
	}
	if days <= 0 {
		days = config.DefaultBackupRetentionDays
	}

	printInfo("Removing backups older than %d days from %s...", days, store.Root())
	pruned, err := store.Prune(days)
	for _, p := range pruned {
		printVerbose("Removed %s", p)
	}
	if err != nil {
		return fmt.Errorf("failed to prune backups: %w", err)
	}
	printInfo("Removed %d backup run(s).", len(pruned))
	return nil
}
