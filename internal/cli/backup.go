package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/davner/mcpguard/internal/logger"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage registry snapshots",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the registry file now",
	RunE:  backupCreateCommand,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE:  backupListCommand,
}

var backupListJSON bool

func init() {
	backupListCmd.Flags().BoolVar(&backupListJSON, "json", false, "Print snapshots as JSON")
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	rootCmd.AddCommand(backupCmd)
}

func backupCreateCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.backups.Create()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	_ = a.audit.Log(logger.Event{
		Operation: "backup",
		Name:      rec.Filename,
		Status:    "success",
	})

	fmt.Printf("✅ %s (%d bytes, %d entries)\n", rec.Filename, rec.SizeBytes, rec.EntryCount)
	return nil
}

func backupListCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.backups.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if backupListJSON {
		return printJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("No backups found.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%-45s %s  %6d bytes  %d entries\n",
			rec.Filename, rec.Timestamp.Format(time.RFC3339), rec.SizeBytes, rec.EntryCount)
	}
	return nil
}
