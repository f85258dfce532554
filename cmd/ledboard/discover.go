package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jpalmerr/ledboard/internal/discovery"
	"github.com/spf13/cobra"
)

// discoverCmd browses the local network for boards.
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find LED boards on the local network via mDNS",
	Long: `Browse for _http._tcp services that advertise the LED API
(TXT record api=led-v1) and print their URLs.

Example:
  ledboard discover
  ledboard discover --timeout 10s --all`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().Duration("timeout", discovery.DefaultScanTimeout, "how long to browse")
	discoverCmd.Flags().Bool("all", false, "list every HTTP service, not only LED boards")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	scanner := discovery.NewScanner()
	scanner.Timeout, _ = cmd.Flags().GetDuration("timeout")
	scanner.All, _ = cmd.Flags().GetBool("all")

	ctx, stop := signalContext(cmd)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Browsing for %s...\n", scanner.Timeout)
	devices, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No devices found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tURL\tHOST\tLED API")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", d.Instance, d.URL(), d.Hostname, d.IsLED())
	}
	return w.Flush()
}
