package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davner/mcpguard/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the registry file and report external modifications",
	Long: `Watches the registry file and re-validates the document after every
external write, warning when the registry stops parsing or contains entries
that would no longer pass validation. Runs until interrupted.`,
	RunE: watchCommand,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", a.cfg.RegistryPath)

	stop := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		close(stop)
	}()

	return watch.Run(a.store, a.audit, stop, func(e watch.Event) {
		icon := "✅"
		if !e.Valid {
			icon = "⚠ "
		}
		fmt.Printf("%s %s: %s\n", icon, e.Op, e.Detail)
	})
}
