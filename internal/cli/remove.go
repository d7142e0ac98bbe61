package cli

import (
	"github.com/spf13/cobra"
)

var removeJSON bool

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a server entry (snapshots the registry first)",
	Args:  cobra.ExactArgs(1),
	RunE:  removeCommand,
}

func init() {
	removeCmd.Flags().BoolVar(&removeJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(removeCmd)
}

func removeCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.orchestrator().Remove(args[0])
	if removeJSON {
		return printJSON(res)
	}
	printResult(res)
	return nil
}
