package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davner/mcpguard/internal/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show or change the global deployment policy",
}

var policyShowJSON bool

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current policy",
	RunE:  policyShowCommand,
}

var (
	policySetEnforced    string
	policySetMinScore    int
	policySetStrict      string
	policySetAllowBypass string
)

var policySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Apply a partial policy update",
	Long: `Updates only the fields given; everything else is left as-is. Boolean
flags take true or false.

  mcpguard policy set --strict true
  mcpguard policy set --min-score 85 --allow-bypass false`,
	RunE: policySetCommand,
}

func init() {
	policyShowCmd.Flags().BoolVar(&policyShowJSON, "json", false, "Print the policy as JSON")
	policySetCmd.Flags().StringVar(&policySetEnforced, "enforced", "", "Enable or disable the gate entirely (true/false)")
	policySetCmd.Flags().IntVar(&policySetMinScore, "min-score", -1, "Minimum passing score [0,100]")
	policySetCmd.Flags().StringVar(&policySetStrict, "strict", "", "Zero-tolerance mode (true/false)")
	policySetCmd.Flags().StringVar(&policySetAllowBypass, "allow-bypass", "", "Permit sub-threshold bypass (true/false)")
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policySetCmd)
	rootCmd.AddCommand(policyCmd)
}

func policyShowCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.policies.Load()
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	if policyShowJSON {
		return printJSON(p)
	}
	printPolicy(p)
	return nil
}

func policySetCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var update policy.Update
	var parseErr error

	parseBool := func(flag, value string) *bool {
		if value == "" || parseErr != nil {
			return nil
		}
		switch value {
		case "true":
			v := true
			return &v
		case "false":
			v := false
			return &v
		default:
			parseErr = fmt.Errorf("--%s must be true or false, got %q", flag, value)
			return nil
		}
	}

	update.Enforced = parseBool("enforced", policySetEnforced)
	update.StrictMode = parseBool("strict", policySetStrict)
	update.AllowedBypass = parseBool("allow-bypass", policySetAllowBypass)
	if parseErr != nil {
		return parseErr
	}
	if policySetMinScore >= 0 {
		update.MinimumScore = &policySetMinScore
	}

	p, err := a.policies.Apply(update)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	fmt.Println("Policy updated:")
	printPolicy(p)
	return nil
}

func printPolicy(p policy.Policy) {
	fmt.Printf("  enforced:       %t\n", p.Enforced)
	fmt.Printf("  minimum score:  %d\n", p.MinimumScore)
	fmt.Printf("  strict mode:    %t\n", p.StrictMode)
	fmt.Printf("  allowed bypass: %t\n", p.AllowedBypass)
	fmt.Printf("  version:        %s\n", p.Version)
	if !p.LastUpdated.IsZero() {
		fmt.Printf("  last updated:   %s\n", p.LastUpdated.Format("2006-01-02 15:04:05 MST"))
	}
}
