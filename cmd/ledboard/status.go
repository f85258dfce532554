package main

import (
	"context"
	"fmt"

	"github.com/jpalmerr/ledboard/internal/probe"
	"github.com/jpalmerr/ledboard/internal/tui"
	"github.com/spf13/cobra"
)

// statusCmd reads the board once and prints a card.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read the board once and print its state",
	Long: `Read LED, bulb and system state from a board and print a summary.

With --ping the host is also probed over ICMP. Unprivileged pings need
net.ipv4.ping_group_range to include your group on Linux; use --privileged
when running as root.

Example:
  ledboard status --device http://192.168.1.50
  ledboard status -c config.yaml --ping`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	addDeviceFlags(statusCmd)
	statusCmd.Flags().Bool("ping", false, "probe the device host over ICMP")
	statusCmd.Flags().Bool("privileged", false, "use raw ICMP sockets for --ping")
}

func runStatus(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	client, err := t.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	snap, err := tui.Read(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", t.url, err)
	}

	if ping, _ := cmd.Flags().GetBool("ping"); ping {
		privileged, _ := cmd.Flags().GetBool("privileged")
		host, err := probe.HostFromURL(t.url)
		if err != nil {
			return err
		}
		p, err := probe.New(host, probe.WithPrivileged(privileged))
		if err != nil {
			return err
		}
		rtt, err := p.Probe(ctx)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "ping: %v\n", err)
		} else {
			snap.Reachable = true
			snap.PingRTT = rtt
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), tui.Card(t.title, snap, t.labels))
	return nil
}
