package cli

import (
	"github.com/spf13/cobra"
)

var restoreJSON bool

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-name>",
	Short: "Restore the registry from a snapshot (snapshots the current state first)",
	Args:  cobra.ExactArgs(1),
	RunE:  restoreCommand,
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(restoreCmd)
}

func restoreCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.orchestrator().Restore(args[0])
	if restoreJSON {
		return printJSON(res)
	}
	printResult(res)
	return nil
}
