// Package autopilot polls a remote optimizer on a fixed interval and records
// every protocol switch it reports.
package autopilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/web3-frozen/yield-optimizer/internal/client"
	"github.com/web3-frozen/yield-optimizer/internal/metrics"
)

const (
	DefaultInterval = 15 * time.Second
	historySize     = 50
)

// ErrWalletUnavailable covers a missing wallet and a rejected connection.
var ErrWalletUnavailable = errors.New("wallet unavailable")

type RemoteSimulator interface {
	Simulate(ctx context.Context, wallet string) (client.SimulateResult, error)
}

type Wallet interface {
	Address(ctx context.Context) (string, error)
}

// StaticWallet is a wallet with a fixed address. An empty address behaves
// like a disconnected wallet.
type StaticWallet string

func (w StaticWallet) Address(context.Context) (string, error) {
	if w == "" {
		return "", fmt.Errorf("%w: no wallet connected", ErrWalletUnavailable)
	}
	return string(w), nil
}

type Switch struct {
	ID      string    `json:"id"`
	At      time.Time `json:"timestamp"`
	From    string    `json:"fromProtocol"`
	To      string    `json:"toProtocol"`
	APY     float64   `json:"apy"`
	Rewards float64   `json:"rewards"`
}

type Snapshot struct {
	Running      bool      `json:"running"`
	Wallet       string    `json:"wallet,omitempty"`
	Protocol     string    `json:"protocol,omitempty"`
	APY          float64   `json:"apy"`
	Polls        int       `json:"polls"`
	Switches     int       `json:"switchCount"`
	TotalRewards float64   `json:"totalRewards"`
	History      []Switch  `json:"history"`
	LastError    string    `json:"lastError,omitempty"`
	LastPollAt   time.Time `json:"lastPollAt"`
}

type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

type Runner struct {
	remote   RemoteSimulator
	wallet   Wallet
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	gen atomic.Uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	state   Snapshot
}

func New(remote RemoteSimulator, wallet Wallet, opts Options) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		remote:   remote,
		wallet:   wallet,
		interval: opts.Interval,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// Start resets the history, polls once immediately and then every interval.
// It returns false if the runner is already running.
func (r *Runner) Start(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	gen := r.gen.Add(1)
	r.running = true
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state = Snapshot{Running: true}

	go r.loop(ctx, gen, r.done)
	r.logger.Info("autopilot started", "interval", r.interval)
	return true
}

// Stop cancels any in-flight poll. Results that arrive afterwards are dropped.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Runner) stopLocked() {
	if !r.running {
		return
	}
	r.gen.Add(1)
	r.cancel()
	r.running = false
	r.state.Running = false
	r.logger.Info("autopilot stopped")
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Done is closed when the current run's loop exits.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.done
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state
	s.History = make([]Switch, len(r.state.History))
	copy(s.History, r.state.History)
	return s
}

func (r *Runner) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	var (
		wg       sync.WaitGroup
		inflight atomic.Bool
	)
	defer wg.Wait()

	fire := func() {
		if !inflight.CompareAndSwap(false, true) {
			metrics.AutopilotPollsTotal.WithLabelValues("skipped").Inc()
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer inflight.Store(false)
			r.poll(ctx, gen)
		}()
	}

	fire()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			fire()
		}
	}
}

func (r *Runner) poll(ctx context.Context, gen uint64) {
	addr, err := r.wallet.Address(ctx)
	if err != nil {
		r.mu.Lock()
		if r.gen.Load() == gen {
			r.state.LastError = err.Error()
			r.logger.Warn("autopilot wallet unavailable, stopping", "error", err)
			r.stopLocked()
		}
		r.mu.Unlock()
		metrics.AutopilotPollsTotal.WithLabelValues("wallet_error").Inc()
		return
	}

	res, err := r.remote.Simulate(ctx, addr)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen.Load() != gen {
		metrics.AutopilotPollsTotal.WithLabelValues("stale").Inc()
		return
	}
	r.state.Polls++
	r.state.LastPollAt = r.now()
	r.state.Wallet = addr
	if err != nil {
		r.state.LastError = err.Error()
		r.logger.Warn("autopilot poll failed", "error", err)
		metrics.AutopilotPollsTotal.WithLabelValues("error").Inc()
		return
	}
	r.state.LastError = ""
	metrics.AutopilotPollsTotal.WithLabelValues("ok").Inc()

	last := r.state.Protocol
	r.state.Protocol = res.Protocol
	r.state.APY = res.APY
	if last == "" || last == res.Protocol {
		return
	}

	from := res.PreviousProtocol
	if from == "" {
		from = last
	}
	sw := Switch{
		ID:      uuid.NewString(),
		At:      r.state.LastPollAt,
		From:    from,
		To:      res.Protocol,
		APY:     res.APY,
		Rewards: res.Rewards,
	}
	r.state.History = append([]Switch{sw}, r.state.History...)
	if len(r.state.History) > historySize {
		r.state.History = r.state.History[:historySize]
	}
	r.state.Switches++
	r.state.TotalRewards += res.Rewards
	r.logger.Info("autopilot switch", "from", sw.From, "to", sw.To, "apy", sw.APY)
}
