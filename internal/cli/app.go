package cli

import (
	"fmt"
	"os"

	"github.com/davner/mcpguard/internal/backup"
	"github.com/davner/mcpguard/internal/config"
	"github.com/davner/mcpguard/internal/deploy"
	"github.com/davner/mcpguard/internal/logger"
	"github.com/davner/mcpguard/internal/patterns"
	"github.com/davner/mcpguard/internal/policy"
	"github.com/davner/mcpguard/internal/registry"
	"github.com/davner/mcpguard/internal/scanner"
)

// app bundles the wired-up components every command needs.
type app struct {
	cfg      *config.Config
	store    *registry.Store
	backups  *backup.Manager
	scanner  *scanner.Scanner
	policies *policy.Store
	audit    *logger.AuditLogger
	packs    []patterns.PackInfo
}

// newApp loads config, merges pattern packs, and wires the components.
// Callers must Close.
func newApp() (*app, error) {
	cfg, err := config.Load(configDirFlag, registryFlag, logFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	weights, err := config.LoadScoringWeights(cfg.ScoringPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring weights: %w", err)
	}

	rules, packs, err := patterns.LoadPacks(cfg.PatternsDir, patterns.BuiltinRules())
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern packs: %w", err)
	}
	for _, p := range packs {
		if p.Err != nil {
			fmt.Fprintf(os.Stderr, "⚠  pattern pack %s skipped: %v\n", p.Name, p.Err)
		}
	}

	audit, err := logger.New(cfg.LogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	backups := backup.NewManager(cfg.RegistryPath, cfg.BackupDir, cfg.Retention)
	backups.Warnf = func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "⚠  "+format+"\n", args...)
	}

	return &app{
		cfg:      cfg,
		store:    registry.NewStore(cfg.RegistryPath),
		backups:  backups,
		scanner:  scanner.New(rules, weights),
		policies: policy.NewStore(cfg.PolicyPath),
		audit:    audit,
		packs:    packs,
	}, nil
}

func (a *app) orchestrator() *deploy.Orchestrator {
	return deploy.NewOrchestrator(a.store, a.backups, a.scanner, a.policies, a.audit)
}

func (a *app) Close() {
	if a.audit != nil {
		a.audit.Close()
	}
}

// printResult renders a deployment result for humans.
func printResult(res *deploy.Result) {
	icon := "✅"
	if !res.OK() {
		icon = "❌"
	}
	fmt.Printf("%s  [%s] %s\n", icon, res.Status, res.Message)
	for _, e := range res.Errors {
		fmt.Printf("   error: %s\n", e)
	}
	for _, w := range res.Warnings {
		fmt.Printf("   warning: %s\n", w)
	}
}
