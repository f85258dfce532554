package main

import (
	"fmt"
	"net"
	"time"

	"github.com/jpalmerr/ledboard/internal/discovery"
	"github.com/jpalmerr/ledboard/internal/logging"
	"github.com/jpalmerr/ledboard/internal/simulator"
	"github.com/spf13/cobra"
)

// simulateCmd serves a simulated board.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated LED board",
	Long: `Serve the board's REST API from memory so the dashboard can be tried
without hardware. Free heap follows this host's memory pressure and the
signal strength jitters around -60 dBm.

With --advertise the simulator registers itself over mDNS so
"ledboard discover" finds it.

Example:
  ledboard simulate --port 8081 --advertise
  ledboard simulate --latency 300ms --fail-every 5`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntP("port", "p", 8081, "port to listen on")
	simulateCmd.Flags().Duration("latency", 0, "delay added to every reply")
	simulateCmd.Flags().Int("fail-every", 0, "answer every Nth request with an error reply")
	simulateCmd.Flags().Bool("advertise", false, "advertise over mDNS")
	simulateCmd.Flags().String("name", "ledboard-sim", "mDNS instance name")
	simulateCmd.Flags().String("log-format", logging.FormatConsole, "log format (console or json)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	latency, _ := cmd.Flags().GetDuration("latency")
	failEvery, _ := cmd.Flags().GetInt("fail-every")
	advertise, _ := cmd.Flags().GetBool("advertise")
	name, _ := cmd.Flags().GetString("name")
	format, _ := cmd.Flags().GetString("log-format")

	logger, sync, err := logging.New(logging.Options{Format: format})
	if err != nil {
		return err
	}
	defer func() { _ = sync() }()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", port, err)
	}

	if advertise {
		withdraw, err := discovery.Advertise(name, port, "sim=true")
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer withdraw()
		logger.Info("advertising", "instance", name, "service", discovery.ServiceType)
	}

	sim := simulator.New(
		simulator.WithLogger(logger),
		simulator.WithLatency(latency),
		simulator.WithFailEvery(failEvery),
		simulator.WithSeed(time.Now().UnixNano()),
	)

	ctx, stop := signalContext(cmd)
	defer stop()

	logger.Info("simulator listening", "url", fmt.Sprintf("http://localhost:%d", port))
	return sim.Serve(ctx, ln)
}
