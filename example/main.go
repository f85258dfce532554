package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/ledboard"
	"github.com/jpalmerr/ledboard/internal/simulator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// a simulated board stands in for the hardware
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		slog.Error("failed to start simulator", "error", err)
		os.Exit(1)
	}
	sim := simulator.New()
	go func() {
		if err := sim.Serve(ctx, ln); err != nil {
			slog.Error("simulator error", "error", err)
		}
	}()
	deviceURL := "http://" + ln.Addr().String()

	lb, err := ledboard.New(
		ledboard.WithDevice(deviceURL),
		ledboard.WithTitle("LEDBoard Demo"),
		ledboard.WithPort(8080),
		ledboard.WithSnapshotCallback(func(s ledboard.Snapshot) {
			if s.LEDState {
				slog.Debug("led is on", "glow", s.BulbGlow)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create ledboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   LEDBoard Demo                                       ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║   Click the bulb to toggle the simulated LED          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("  Simulated board:", deviceURL)
	fmt.Println()

	if err := lb.Start(ctx); err != nil {
		slog.Error("ledboard error", "error", err)
		os.Exit(1)
	}
}
