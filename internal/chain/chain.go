// Package chain stands in for on-chain execution. Every operation only
// estimates gas, waits and returns a made-up transaction hash; nothing is
// ever signed or broadcast.
package chain

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultGasPriceGwei = 50
	DefaultGasLimit     = 200_000
	DefaultETHPriceUSD  = 2000
	DefaultPrincipal    = 10_000

	claimGasFactor = 0.8
	startNonce     = 1000
)

type Op string

const (
	OpDeposit  Op = "deposit"
	OpWithdraw Op = "withdraw"
	OpClaim    Op = "claim"
)

// Rand is the randomness behind hashes and reward draws.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

type GasEstimate struct {
	Op         Op      `json:"op"`
	GasUnits   float64 `json:"estimatedGas"`
	CostUSD    float64 `json:"estimatedCost"`
	Acceptable bool    `json:"acceptable"`
}

type Config struct {
	GasPriceGwei float64
	GasLimit     float64
	ETHPriceUSD  float64
	// GasCeilingUSD marks estimates above it unacceptable. Zero disables.
	GasCeilingUSD float64
	Principal     float64
	Delay         time.Duration // base latency; withdraw/deposit wait 1x, claim 0.8x
}

func DefaultConfig() Config {
	return Config{
		GasPriceGwei:  DefaultGasPriceGwei,
		GasLimit:      DefaultGasLimit,
		ETHPriceUSD:   DefaultETHPriceUSD,
		GasCeilingUSD: 100,
		Principal:     DefaultPrincipal,
		Delay:         time.Second,
	}
}

// Simulator fakes the transactions a rebalance would send.
type Simulator struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	rng   Rand
	nonce int64
}

func NewSimulator(cfg Config, rng Rand, logger *slog.Logger) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{cfg: cfg, rng: rng, logger: logger, nonce: startNonce}
}

// GasCostUSD converts gas units to dollars at the configured prices.
func (s *Simulator) GasCostUSD(units float64) float64 {
	wei := decimal.NewFromFloat(units).Mul(decimal.NewFromFloat(s.cfg.GasPriceGwei)).Shift(9)
	eth := wei.Shift(-18)
	return eth.Mul(decimal.NewFromFloat(s.cfg.ETHPriceUSD)).InexactFloat64()
}

func (s *Simulator) gasUnits(op Op) float64 {
	if op == OpClaim {
		return s.cfg.GasLimit * claimGasFactor
	}
	return s.cfg.GasLimit
}

func (s *Simulator) EstimateGas(op Op) GasEstimate {
	units := s.gasUnits(op)
	cost := s.GasCostUSD(units)
	return GasEstimate{
		Op:         op,
		GasUnits:   units,
		CostUSD:    cost,
		Acceptable: s.cfg.GasCeilingUSD <= 0 || cost < s.cfg.GasCeilingUSD,
	}
}

// SwitchCostUSD is the gas for a full withdraw, claim and deposit cycle.
func (s *Simulator) SwitchCostUSD() float64 {
	return s.GasCostUSD(s.gasUnits(OpWithdraw) + s.gasUnits(OpClaim) + s.gasUnits(OpDeposit))
}

func (s *Simulator) Deposit(ctx context.Context, protocolName string, amount float64) (string, error) {
	return s.send(ctx, OpDeposit, protocolName, amount, s.cfg.Delay)
}

func (s *Simulator) Withdraw(ctx context.Context, protocolName string, amount float64) (string, error) {
	return s.send(ctx, OpWithdraw, protocolName, amount, s.cfg.Delay)
}

// ClaimRewards pretends to harvest between 0.5% and 2% of the principal.
func (s *Simulator) ClaimRewards(ctx context.Context, protocolName string) (string, float64, error) {
	s.mu.Lock()
	pct := 0.5 + s.rng.Float64()*1.5
	s.mu.Unlock()
	rewards := s.cfg.Principal * pct / 100

	hash, err := s.send(ctx, OpClaim, protocolName, rewards, time.Duration(float64(s.cfg.Delay)*claimGasFactor))
	if err != nil {
		return "", 0, err
	}
	return hash, rewards, nil
}

func (s *Simulator) send(ctx context.Context, op Op, protocolName string, amount float64, delay time.Duration) (string, error) {
	est := s.EstimateGas(op)
	hash := s.TxHash()
	s.logger.Info("simulated transaction",
		"op", op,
		"protocol", protocolName,
		"amount", amount,
		"gas", est.GasUnits,
		"cost_usd", est.CostUSD,
		"tx", hash,
	)
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return hash, nil
}

// TxHash returns a random 32-byte hex string with 0x prefix.
func (s *Simulator) TxHash() string {
	const hexChars = "0123456789abcdef"
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	b.Grow(66)
	b.WriteString("0x")
	for i := 0; i < 64; i++ {
		b.WriteByte(hexChars[s.rng.Intn(len(hexChars))])
	}
	return b.String()
}

// Nonce returns the next transaction nonce.
func (s *Simulator) Nonce() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nonce
	s.nonce++
	return n
}

func (s *Simulator) ResetNonce() {
	s.mu.Lock()
	s.nonce = startNonce
	s.mu.Unlock()
}
