package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/web3-frozen/yield-optimizer/internal/metrics"
	"github.com/web3-frozen/yield-optimizer/internal/protocol"
)

var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrUnknownProtocol  = errors.New("unknown protocol")
	ErrUnsupportedAsset = errors.New("unsupported asset")
)

// GasFunc returns the estimated USD cost of a switch. Only consulted when the
// policy sets MaxGasUSD.
type GasFunc func() float64

type Options struct {
	Registry     *protocol.Registry
	Rand         protocol.Rand
	Policy       Policy
	TickInterval time.Duration
	LogCapacity  int
	Logger       *slog.Logger
	Now          func() time.Time
	Gas          GasFunc
}

// TickResult is published to subscribers after every effective tick.
type TickResult struct {
	At           time.Time           `json:"at"`
	Protocols    []protocol.Protocol `json:"protocols"`
	Investment   *Investment         `json:"investment,omitempty"`
	Event        *SwitchEvent        `json:"event,omitempty"`
	Delta        float64             `json:"delta"`
	TotalRewards float64             `json:"totalRewards"`
}

// State is a point-in-time copy of everything the dashboard renders.
type State struct {
	Protocols    []protocol.Protocol `json:"protocols"`
	Investment   *Investment         `json:"investment,omitempty"`
	Recommended  *protocol.Protocol  `json:"recommended,omitempty"`
	Events       []SwitchEvent       `json:"events"`
	TotalRewards float64             `json:"totalRewards"`
	SwitchCount  int                 `json:"switchCount"`
	Ticks        int64               `json:"ticks"`
	Simulating   bool                `json:"simulating"`
	TickInterval string              `json:"tickInterval"`
}

// Simulator owns one simulated position and the protocol list it tracks.
// Several simulators can coexist; nothing here is package global.
type Simulator struct {
	reg    *protocol.Registry
	engine Engine
	log    *ActivityLog
	clock  *Clock
	logger *slog.Logger
	now    func() time.Time
	gas    GasFunc

	mu           sync.Mutex
	rng          protocol.Rand
	investment   *Investment
	totalRewards float64
	switches     int
	ticks        int64
	simulating   bool

	subMu  sync.RWMutex
	subs   map[int]func(TickResult)
	nextID int
}

func New(opts Options) *Simulator {
	if opts.Registry == nil {
		opts.Registry = protocol.NewRegistry(protocol.Seed())
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Gas == nil {
		opts.Gas = func() float64 { return 0 }
	}

	s := &Simulator{
		reg:    opts.Registry,
		engine: NewEngine(opts.Policy, opts.TickInterval),
		log:    NewActivityLog(opts.LogCapacity),
		logger: opts.Logger,
		now:    opts.Now,
		gas:    opts.Gas,
		rng:    opts.Rand,
		subs:   make(map[int]func(TickResult)),
	}
	s.clock = NewClock(opts.TickInterval, func(t time.Time) { s.Tick(t) })
	return s
}

// Deposit opens the simulated position and starts the clock. Rejected
// deposits leave the simulator untouched.
func (s *Simulator) Deposit(protocolID string, amount float64, asset string) (Investment, error) {
	if !(amount > 0) {
		return Investment{}, ErrInvalidAmount
	}
	if _, ok := s.reg.Get(protocolID); !ok {
		return Investment{}, fmt.Errorf("%w: %q", ErrUnknownProtocol, protocolID)
	}
	if !protocol.SupportedAsset(asset) {
		return Investment{}, fmt.Errorf("%w: %q", ErrUnsupportedAsset, asset)
	}

	inv := Investment{
		ID:          uuid.NewString(),
		ProtocolID:  protocolID,
		Amount:      amount,
		Asset:       asset,
		DepositedAt: s.now(),
	}

	s.mu.Lock()
	s.investment = &inv
	s.simulating = true
	s.mu.Unlock()

	s.clock.Start()
	metrics.SimSimulating.Set(1)
	s.logger.Info("deposit", "protocol", protocolID, "amount", amount, "asset", asset)
	return inv, nil
}

// Tick advances the simulation by one step. It does nothing unless the
// simulation is running, and reports whether a step happened.
func (s *Simulator) Tick(now time.Time) (TickResult, bool) {
	s.mu.Lock()
	if !s.simulating {
		s.mu.Unlock()
		return TickResult{}, false
	}

	list := s.reg.Update(func(cur []protocol.Protocol) []protocol.Protocol {
		return protocol.Fluctuate(cur, s.rng)
	})
	s.ticks++

	res := TickResult{At: now, Protocols: list}
	if s.investment != nil {
		step := s.engine.Step(*s.investment, list, now, s.gas())
		s.investment = &step.Investment
		res.Delta = step.Delta
		if step.Event != nil {
			s.log.Append(*step.Event)
			s.totalRewards += step.Claimed
			s.switches++
			res.Event = step.Event
		}
		inv := *s.investment
		res.Investment = &inv
	}
	res.TotalRewards = s.totalRewards
	s.mu.Unlock()

	metrics.SimTicksTotal.Inc()
	for _, p := range list {
		metrics.ProtocolAPY.WithLabelValues(p.ID).Set(p.APY)
	}
	if ev := res.Event; ev != nil {
		metrics.SimSwitchesTotal.WithLabelValues(ev.FromProtocol, ev.ToProtocol).Inc()
		metrics.SimRewardsTotal.Set(res.TotalRewards)
		s.logger.Info("protocol switch",
			"from", ev.FromProtocol,
			"to", ev.ToProtocol,
			"claimed", ev.RewardsClaimed,
			"reason", ev.Reason,
		)
	}

	s.publish(res)
	return res, true
}

// Start resumes the clock. Starting without a position is allowed; the
// protocol list still fluctuates.
func (s *Simulator) Start() {
	s.mu.Lock()
	s.simulating = true
	s.mu.Unlock()
	if s.clock.Start() {
		s.logger.Info("simulation started", "interval", s.clock.Interval().String())
	}
	metrics.SimSimulating.Set(1)
}

func (s *Simulator) Stop() {
	s.mu.Lock()
	s.simulating = false
	s.mu.Unlock()
	s.clock.Stop()
	metrics.SimSimulating.Set(0)
}

// Toggle flips between running and paused and returns the new state.
func (s *Simulator) Toggle() bool {
	if s.Simulating() {
		s.Stop()
		return false
	}
	s.Start()
	return true
}

func (s *Simulator) Simulating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulating
}

func (s *Simulator) Investment() (Investment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.investment == nil {
		return Investment{}, false
	}
	return *s.investment, true
}

// Events returns up to limit switch events, newest first.
func (s *Simulator) Events(limit int) []SwitchEvent {
	return s.log.Recent(limit)
}

func (s *Simulator) Protocols() []protocol.Protocol {
	return s.reg.Snapshot()
}

func (s *Simulator) State() State {
	s.mu.Lock()
	st := State{
		Protocols:    s.reg.Snapshot(),
		TotalRewards: s.totalRewards,
		SwitchCount:  s.switches,
		Ticks:        s.ticks,
		Simulating:   s.simulating,
		TickInterval: s.clock.Interval().String(),
	}
	if s.investment != nil {
		inv := *s.investment
		st.Investment = &inv
	}
	s.mu.Unlock()

	if best, ok := protocol.Best(st.Protocols, ""); ok {
		st.Recommended = &best
	}
	st.Events = s.log.Recent(0)
	return st
}

// Subscribe registers fn to receive every tick result. The returned func
// removes the subscription.
func (s *Simulator) Subscribe(fn func(TickResult)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Simulator) publish(res TickResult) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subs {
		fn(res)
	}
}
