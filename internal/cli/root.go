package cli

import (
	"github.com/spf13/cobra"
)

var (
	configDirFlag string
	registryFlag  string
	logFlag       string
)

var rootCmd = &cobra.Command{
	Use:   "mcpguard",
	Short: "mcpguard - Protected MCP server registry deployment",
	Long: `mcpguard manages the shared MCP server registry file with a
backup-before-mutate guarantee: every deployment is preceded by a snapshot,
checked for name conflicts, and gated on a static security scan of the
candidate executable before the registry is atomically updated.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "Config directory (default: ~/.mcpguard)")
	rootCmd.PersistentFlags().StringVar(&registryFlag, "registry", "", "Path to registry JSON file (default: <config-dir>/registry.json)")
	rootCmd.PersistentFlags().StringVar(&logFlag, "log", "", "Path to audit log file (default: <config-dir>/audit.jsonl)")
}

func Execute() error {
	return rootCmd.Execute()
}
