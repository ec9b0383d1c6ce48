package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/config"
	"github.com/jamesainslie/modsync/pkg/modsync/history"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View install history",
	Long: `View the record of past install runs.

A record is kept for every install, including the counts of installed,
replaced and failed entries and where backups were written.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific run",
	Long:  `Display one install run. A unique prefix of the id is enough.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyStore() (*history.Store, error) {
	store, err := history.New(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := historyStore()
	if err != nil {
		return err
	}
	records, err := store.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if err := render(output.FromHistory(records)); err != nil {
		return err
	}
	if len(records) > 0 {
		printVerbose("Use 'modsync history show <id>' for details on a specific run.")
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := historyStore()
	if err != nil {
		return err
	}
	rec, err := store.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}
	return render(output.FromRecord(rec))
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	store, err := historyStore()
	if err != nil {
		return err
	}

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultHistoryRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)
	removed, err := store.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	printInfo("Removed %d entries.", removed)
	return nil
}
