// Package main is the entry point for the ledboard CLI.
//
// LEDBoard can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach
// plus a few tools for working with boards from a terminal.
//
// Usage:
//
//	ledboard serve -c config.yaml      # Start the dashboard
//	ledboard validate -c config.yaml   # Validate configuration
//	ledboard status --device URL       # One-shot device read
//	ledboard watch --device URL        # Live terminal dashboard
//	ledboard discover                  # Find boards via mDNS
//	ledboard simulate --port 8081      # Run a simulated board
//	ledboard version                   # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "ledboard",
	Short: "A live dashboard for a networked LED board",
	Long: `LEDBoard is a companion dashboard for a small networked LED board.

It polls the board's REST API, renders LED, bulb and system state into a
web page, and pushes every change to open browsers. Clicking the bulb
toggles the LED.

Quick start:
  1. Create a config file (ledboard.yaml)
  2. Run: ledboard serve -c ledboard.yaml
  3. Open http://localhost:8080 in your browser

No board at hand? Run "ledboard simulate" and point device.url at it.

Example config:
  port: 8080
  device:
    url: http://192.168.1.50
  poll:
    status: 1s
    info: 5s`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this ledboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ledboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
