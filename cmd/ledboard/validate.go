package main

import (
	"fmt"

	"github.com/jpalmerr/ledboard/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a LEDBoard configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  ledboard validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ping := "off"
	if cfg.Ping.Enabled {
		ping = "every " + cfg.Ping.Interval.Duration().String()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Device:     %s\n", cfg.Device.URL)
	fmt.Fprintf(out, "  Port:       %d\n", cfg.Port)
	fmt.Fprintf(out, "  Intervals:  status %s, bulb %s, info %s\n",
		cfg.Poll.Status.Duration(), cfg.Poll.Bulb.Duration(), cfg.Poll.Info.Duration())
	fmt.Fprintf(out, "  Sidebar:    breakpoint %dpx, nav close %s\n",
		cfg.Sidebar.Breakpoint, cfg.Sidebar.NavCloseDelay.Duration())
	fmt.Fprintf(out, "  Ping:       %s\n", ping)

	return nil
}
