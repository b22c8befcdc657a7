package rebalance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/web3-frozen/yield-optimizer/internal/metrics"
	"github.com/web3-frozen/yield-optimizer/internal/protocol"
	"github.com/web3-frozen/yield-optimizer/internal/sim"
	"github.com/web3-frozen/yield-optimizer/internal/yields"
)

const (
	DefaultSchedule = "*/10 * * * *"
	historySize     = 50
)

// DefaultPolicy is the scheduled rebalancer's policy: a 2% gap, a day
// between moves out of the same protocol and a $100 gas ceiling.
var DefaultPolicy = sim.Policy{Threshold: 2.0, Cooldown: 24 * time.Hour, MaxGasUSD: 100}

var ErrRunning = errors.New("rebalance already in progress")

// Quoter ranks the protocols the workflow can move between.
type Quoter interface {
	Compare(ctx context.Context, chain, current string) yields.Comparison
}

// Chain executes the simulated transactions of a move.
type Chain interface {
	Withdraw(ctx context.Context, protocol string, amount float64) (string, error)
	ClaimRewards(ctx context.Context, protocol string) (string, float64, error)
	Deposit(ctx context.Context, protocol string, amount float64) (string, error)
	SwitchCostUSD() float64
}

type State struct {
	CurrentProtocol string    `json:"currentProtocol"`
	Principal       float64   `json:"principal"`
	InvestedAt      time.Time `json:"investedAt"`
	Rewards         float64   `json:"rewards"`
	LastRebalanceAt time.Time `json:"lastRebalanceAt,omitempty"`
}

type Result struct {
	Execution     int               `json:"execution"`
	ExecutedAt    time.Time         `json:"executedAt"`
	Triggered     bool              `json:"triggered"`
	Reason        string            `json:"reason"`
	From          string            `json:"fromProtocol,omitempty"`
	To            string            `json:"toProtocol,omitempty"`
	APYDifference float64           `json:"apyDifference"`
	Withdrawn     float64           `json:"simulatedWithdrawal,omitempty"`
	Claimed       float64           `json:"claimedRewards,omitempty"`
	Deposited     float64           `json:"newDeposit,omitempty"`
	TxHashes      []string          `json:"txHashes,omitempty"`
	GasCostUSD    float64           `json:"gasCostUsd"`
	Comparison    yields.Comparison `json:"comparison"`
}

type CooldownStatus struct {
	Protocol       string  `json:"protocol"`
	InCooldown     bool    `json:"inCooldown"`
	HoursRemaining float64 `json:"hoursRemaining"`
}

type Status struct {
	State      State          `json:"state"`
	Policy     sim.Policy     `json:"policy"`
	Chain      string         `json:"chain"`
	Executions int            `json:"executions"`
	Cooldown   CooldownStatus `json:"cooldown"`
	History    []Result       `json:"history"`
}

type Options struct {
	Policy    sim.Policy
	Chain     string
	Principal float64
	Initial   string
	Logger    *slog.Logger
	Now       func() time.Time
	// OnMove is called after every executed rebalance.
	OnMove func(Result)
}

// Workflow periodically compares supported protocols and moves the
// simulated principal when the policy allows it.
type Workflow struct {
	quoter Quoter
	chain  Chain
	policy sim.Policy
	chainN string
	logger *slog.Logger
	now    func() time.Time
	onMove func(Result)

	running atomic.Bool

	mu         sync.Mutex
	state      State
	executions int
	history    []Result
}

func New(q Quoter, c Chain, opts Options) *Workflow {
	if opts.Policy == (sim.Policy{}) {
		opts.Policy = DefaultPolicy
	}
	if opts.Chain == "" {
		opts.Chain = yields.DefaultChain
	}
	if opts.Principal <= 0 {
		opts.Principal = 10_000
	}
	if opts.Initial == "" {
		opts.Initial = "Aave"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Workflow{
		quoter: q,
		chain:  c,
		policy: opts.Policy,
		chainN: opts.Chain,
		logger: opts.Logger,
		now:    opts.Now,
		onMove: opts.OnMove,
		state: State{
			CurrentProtocol: opts.Initial,
			Principal:       opts.Principal,
			InvestedAt:      opts.Now(),
		},
	}
}

// Execute runs one evaluation and, if warranted, one simulated move.
// Concurrent calls are rejected with ErrRunning.
func (w *Workflow) Execute(ctx context.Context) (Result, error) {
	if !w.running.CompareAndSwap(false, true) {
		return Result{}, ErrRunning
	}
	defer w.running.Store(false)

	w.mu.Lock()
	w.executions++
	exec := w.executions
	st := w.state
	w.mu.Unlock()

	now := w.now()
	cmp := w.quoter.Compare(ctx, w.chainN, st.CurrentProtocol)
	gas := w.chain.SwitchCostUSD()

	since := time.Duration(math.MaxInt64)
	if !st.LastRebalanceAt.IsZero() {
		since = now.Sub(st.LastRebalanceAt)
	}
	cur := protocol.Protocol{ID: strings.ToLower(st.CurrentProtocol), Name: st.CurrentProtocol, APY: cmp.CurrentAPY}
	best := protocol.Protocol{ID: strings.ToLower(cmp.Best), Name: cmp.Best, APY: cmp.BestAPY}

	res := Result{
		Execution:     exec,
		ExecutedAt:    now,
		APYDifference: cmp.Difference,
		GasCostUSD:    gas,
		Comparison:    cmp,
	}

	ok, reason := w.policy.Decide(cur, best, since, gas)
	res.Reason = reason
	if !ok {
		w.logger.Info("rebalance skipped", "execution", exec, "current", cur.Name, "best", best.Name, "reason", reason)
		metrics.RebalanceRunsTotal.WithLabelValues("skipped").Inc()
		w.record(res)
		return res, nil
	}

	hashes, claimed, err := w.move(ctx, st, best.Name)
	if err != nil {
		metrics.RebalanceRunsTotal.WithLabelValues("error").Inc()
		w.logger.Error("rebalance failed", "execution", exec, "error", err)
		return res, fmt.Errorf("rebalance %s -> %s: %w", cur.Name, best.Name, err)
	}

	res.Triggered = true
	res.From = st.CurrentProtocol
	res.To = best.Name
	res.Withdrawn = st.Principal
	res.Claimed = claimed
	res.Deposited = st.Principal
	res.TxHashes = hashes

	w.mu.Lock()
	w.state.CurrentProtocol = best.Name
	w.state.LastRebalanceAt = now
	w.state.Rewards += claimed
	w.mu.Unlock()
	w.record(res)

	metrics.RebalanceRunsTotal.WithLabelValues("triggered").Inc()
	w.logger.Info("rebalance executed",
		"execution", exec,
		"from", res.From,
		"to", res.To,
		"apy_difference", cmp.Difference,
		"claimed", claimed,
	)
	if w.onMove != nil {
		w.onMove(res)
	}
	return res, nil
}

func (w *Workflow) move(ctx context.Context, st State, to string) ([]string, float64, error) {
	withdrawTx, err := w.chain.Withdraw(ctx, st.CurrentProtocol, st.Principal)
	if err != nil {
		return nil, 0, fmt.Errorf("withdraw: %w", err)
	}
	claimTx, claimed, err := w.chain.ClaimRewards(ctx, st.CurrentProtocol)
	if err != nil {
		return nil, 0, fmt.Errorf("claim: %w", err)
	}
	depositTx, err := w.chain.Deposit(ctx, to, st.Principal)
	if err != nil {
		return nil, 0, fmt.Errorf("deposit: %w", err)
	}
	return []string{withdrawTx, claimTx, depositTx}, claimed, nil
}

func (w *Workflow) record(res Result) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append([]Result{res}, w.history...)
	if len(w.history) > historySize {
		w.history = w.history[:historySize]
	}
}

// Run is the scheduler entry point; errors are logged, never returned.
func (w *Workflow) Run(ctx context.Context) {
	if _, err := w.Execute(ctx); err != nil && !errors.Is(err, ErrRunning) {
		w.logger.Warn("scheduled rebalance", "error", err)
	}
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Cooldown reports whether the position may leave its current protocol
// yet. The cooldown runs from the last move, the same rule the tick
// simulator applies from its deposit time.
func (w *Workflow) Cooldown() CooldownStatus {
	w.mu.Lock()
	st := w.state
	w.mu.Unlock()

	cs := CooldownStatus{Protocol: st.CurrentProtocol}
	if st.LastRebalanceAt.IsZero() || w.policy.Cooldown <= 0 {
		return cs
	}
	remaining := w.policy.Cooldown - w.now().Sub(st.LastRebalanceAt)
	if remaining > 0 {
		cs.InCooldown = true
		cs.HoursRemaining = protocol.Round2(remaining.Hours())
	}
	return cs
}

func (w *Workflow) Status() Status {
	w.mu.Lock()
	st := Status{
		State:      w.state,
		Policy:     w.policy,
		Chain:      w.chainN,
		Executions: w.executions,
		History:    append([]Result(nil), w.history...),
	}
	w.mu.Unlock()
	st.Cooldown = w.Cooldown()
	if st.History == nil {
		st.History = []Result{}
	}
	return st
}
