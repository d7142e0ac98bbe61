package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davner/mcpguard/internal/logger"
	"github.com/davner/mcpguard/internal/scanner"
)

var (
	scanProjectRoot string
	scanJSON        bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Statically scan a candidate executable without deploying it",
	Long: `Runs the static security scanner against a file and, optionally, its
project tree, and prints the category breakdown and score. Nothing is
executed and nothing is written to the registry.

  mcpguard scan /usr/local/bin/files-server
  mcpguard scan ./server.js --project-root .`,
	Args: cobra.ExactArgs(1),
	RunE: scanCommand,
}

func init() {
	scanCmd.Flags().StringVar(&scanProjectRoot, "project-root", "", "Project root to include in the scan")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the scan result as JSON")
	rootCmd.AddCommand(scanCmd)
}

func scanCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.scanner.Scan(args[0], scanProjectRoot)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	_ = a.audit.Log(logger.Event{
		Operation: "scan",
		Name:      args[0],
		Status:    fmt.Sprintf("passed=%t", res.Passed),
		Score:     res.Score,
	})

	if scanJSON {
		return printJSON(res)
	}

	fmt.Printf("Scan of %s\n\n", args[0])
	printCategory("Code analysis", res.CodeAnalysis)
	printCategory("Dependency check", res.DependencyCheck)
	printCategory("Configuration check", res.ConfigurationCheck)
	printCategory("Permission check", res.PermissionCheck)

	fmt.Printf("\nScore: %d/100   Categories passed: %t\n", res.Score, res.Passed)
	return nil
}

func printCategory(label string, cat scanner.CategoryResult) {
	icon := "✅"
	if !cat.Passed {
		icon = "❌"
	}
	fmt.Printf("%s %-20s %d finding(s)\n", icon, label, len(cat.Findings))
	for _, f := range cat.Findings {
		loc := ""
		if f.File != "" {
			loc = fmt.Sprintf(" (%s:%d)", f.File, f.Line)
		}
		fmt.Printf("     [%s] %s: %s%s\n", f.Severity, f.RuleID, f.Detail, loc)
	}
}
