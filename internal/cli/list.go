package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry entries",
	RunE:  listCommand,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print entries as JSON")
	rootCmd.AddCommand(listCmd)
}

func listCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.store.ListEntries()
	if err != nil {
		return fmt.Errorf("failed to read registry: %w", err)
	}

	if listJSON {
		return printJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Println("Registry is empty.")
		return nil
	}

	for _, e := range entries {
		state := ""
		if e.Descriptor.Disabled {
			state = "  (disabled)"
		}
		fmt.Printf("%-20s %s %s%s\n", e.Name, e.Descriptor.Command, strings.Join(e.Descriptor.Args, " "), state)
	}
	fmt.Printf("\n%d entries in %s\n", len(entries), a.cfg.RegistryPath)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
