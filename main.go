package main

import (
	"os"

	"github.com/davner/mcpguard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
