package main

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jpalmerr/ledboard/internal/tui"
	"github.com/spf13/cobra"
)

// watchCmd runs the live terminal dashboard.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal dashboard with LED control",
	Long: `Poll a board and show its state in the terminal.

Keys: t or space toggles the LED, o turns it on, f turns it off,
r refreshes and q quits.

Example:
  ledboard watch --device http://192.168.1.50 --interval 500ms`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addDeviceFlags(watchCmd)
	watchCmd.Flags().Duration("interval", time.Second, "refresh interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	client, err := t.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	model := tui.NewModel(t.title, client, interval, t.timeout, t.labels)
	_, err = tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
