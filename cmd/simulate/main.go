// Command simulate runs the yield optimizer without a server, or follows a
// running server's /simulate endpoint, and prints the results as tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/web3-frozen/yield-optimizer/internal/autopilot"
	"github.com/web3-frozen/yield-optimizer/internal/client"
	"github.com/web3-frozen/yield-optimizer/internal/protocol"
	"github.com/web3-frozen/yield-optimizer/internal/sim"
)

func main() {
	ticks := flag.Int("ticks", 720, "local ticks to run (720 = one simulated hour at 5s)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed for APY fluctuation")
	protocolID := flag.String("protocol", "aave-v3", "protocol to deposit into")
	amount := flag.Float64("amount", 10_000, "deposit amount")
	asset := flag.String("asset", "USDC", "deposit asset")
	interval := flag.Duration("interval", sim.DefaultTickInterval, "tick interval (local) or poll interval (remote)")
	remote := flag.String("remote", "", "base URL of a running server; polls /simulate instead of simulating locally")
	wallet := flag.String("wallet", "0x0000000000000000000000000000000000000001", "wallet address sent to the remote")
	duration := flag.Duration("for", time.Minute, "how long to poll the remote")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *remote != "" {
		if err := runRemote(ctx, *remote, *wallet, *interval, *duration, logger); err != nil {
			logger.Error("remote run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	s := sim.New(sim.Options{
		Rand:         rand.New(rand.NewSource(*seed)),
		TickInterval: *interval,
		Logger:       logger,
	})
	sum, err := runLocal(s, *protocolID, *amount, *asset, *ticks, *interval, time.Now())
	if err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}
	printSummary(os.Stdout, sum)
}

type summary struct {
	Ticks     int
	Elapsed   time.Duration
	State     sim.State
	Protocols []protocol.Protocol
}

// runLocal deposits and advances the simulator on a virtual clock, so an
// hour of ticks finishes instantly.
func runLocal(s *sim.Simulator, protocolID string, amount float64, asset string, ticks int, interval time.Duration, start time.Time) (summary, error) {
	if _, err := s.Deposit(protocolID, amount, asset); err != nil {
		return summary{}, fmt.Errorf("deposit: %w", err)
	}
	now := start
	for i := 0; i < ticks; i++ {
		now = now.Add(interval)
		s.Tick(now)
	}
	s.Stop()
	st := s.State()
	return summary{Ticks: ticks, Elapsed: now.Sub(start), State: st, Protocols: st.Protocols}, nil
}

func runRemote(ctx context.Context, baseURL, wallet string, interval, duration time.Duration, logger *slog.Logger) error {
	c := client.New(baseURL)
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	rn := autopilot.New(c, autopilot.StaticWallet(wallet), autopilot.Options{Interval: interval, Logger: logger})
	rn.Start(ctx)
	select {
	case <-ctx.Done():
	case <-time.After(duration):
	case <-rn.Done():
	}
	rn.Stop()
	<-rn.Done()

	snap := rn.Snapshot()
	printAutopilot(os.Stdout, snap)
	if snap.Polls == 0 && snap.LastError != "" {
		return fmt.Errorf("no successful polls: %s", snap.LastError)
	}
	return nil
}
