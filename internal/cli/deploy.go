package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/davner/mcpguard/internal/deploy"
	"github.com/davner/mcpguard/internal/registry"
)

var (
	deployEnvFlags    []string
	deployAutoApprove []string
	deployDisabled    bool
	deployOverride    bool
	deployScanTarget  string
	deployProjectRoot string
	deployJSON        bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy <name> <command> [args...]",
	Short: "Deploy a server entry into the registry (backup, conflict check, security gate, verify)",
	Long: `Deploys a server entry through the protected workflow: snapshot the
registry, check for a name conflict, statically scan the target executable,
evaluate the global policy, then atomically write and verify.

  mcpguard deploy files /usr/local/bin/files-server
  mcpguard deploy gh npx -y @owner/gh-server --env GITHUB_HOST=github.com
  mcpguard deploy files /usr/local/bin/files-server --override`,
	Args: cobra.MinimumNArgs(2),
	RunE: deployCommand,
}

func init() {
	deployCmd.Flags().StringArrayVar(&deployEnvFlags, "env", nil, "Environment variable KEY=VALUE (repeatable)")
	deployCmd.Flags().StringSliceVar(&deployAutoApprove, "auto-approve", nil, "Capability names to pre-approve")
	deployCmd.Flags().BoolVar(&deployDisabled, "disabled", false, "Register the entry disabled")
	deployCmd.Flags().BoolVar(&deployOverride, "override", false, "Replace an existing same-named entry")
	deployCmd.Flags().StringVar(&deployScanTarget, "scan-target", "", "File to scan instead of the command itself")
	deployCmd.Flags().StringVar(&deployProjectRoot, "project-root", "", "Project root to include in the scan")
	deployCmd.Flags().BoolVar(&deployJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(deployCmd)
}

func deployCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	env, err := parseEnvFlags(deployEnvFlags)
	if err != nil {
		return err
	}

	req := deploy.Request{
		Name: args[0],
		Entry: registry.ServiceDescriptor{
			Command:     args[1],
			Args:        args[2:],
			Env:         env,
			Disabled:    deployDisabled,
			AutoApprove: deployAutoApprove,
		},
		ScanTarget:  deployScanTarget,
		ProjectRoot: deployProjectRoot,
		Override:    deployOverride,
	}

	orch := a.orchestrator()
	res := orch.Deploy(req)

	// A conflict in an interactive session gets one confirmation prompt
	// before the caller has to re-run with --override.
	if res.Status == deploy.StatusConflict && !req.Override && isInteractive() {
		if confirmOverride(req.Name) {
			req.Override = true
			res = orch.Deploy(req)
		}
	}

	if deployJSON {
		return printJSON(res)
	}
	printResult(res)
	if res.Scan != nil {
		fmt.Printf("   score: %d/100 (categories passed: %t)\n", res.Scan.Score, res.Scan.Passed)
	}
	return nil
}

func parseEnvFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(flags))
	for _, kv := range flags {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q: expected KEY=VALUE", kv)
		}
		env[key] = value
	}
	return env, nil
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func confirmOverride(name string) bool {
	confirmed := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("An entry named %q already exists.", name)).
			Description("Overriding replaces it after a fresh backup. Continue?").
			Affirmative("Override").
			Negative("Abort").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false
	}
	return confirmed
}
