package sim

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/web3-frozen/yield-optimizer/internal/protocol"
)

const (
	DefaultTickInterval = 5 * time.Second
	DefaultThreshold    = 0.5
)

// Investment is the single simulated position.
type Investment struct {
	ID          string    `json:"id"`
	ProtocolID  string    `json:"protocolId"`
	Amount      float64   `json:"amount"`
	Asset       string    `json:"asset"`
	DepositedAt time.Time `json:"depositedAt"`
	Rewards     float64   `json:"rewards"`
}

// SwitchEvent records one automatic move between protocols. It carries
// copies of the values at decision time, not references to live records.
type SwitchEvent struct {
	ID             string    `json:"id"`
	FromProtocol   string    `json:"fromProtocol"`
	ToProtocol     string    `json:"toProtocol"`
	Amount         float64   `json:"amount"`
	RewardsClaimed float64   `json:"rewardsClaimed"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
	FromAPY        float64   `json:"fromApy"`
	ToAPY          float64   `json:"toApy"`
}

// Policy decides whether a better protocol is worth moving to. The same
// policy type drives the tick simulator and the scheduled rebalancer; they
// differ only in the values they configure.
//
// A switch requires best.APY > current.APY + Threshold (strict). A zero
// Cooldown or MaxGasUSD disables that gate.
type Policy struct {
	Threshold float64       `json:"threshold" yaml:"threshold"`
	Cooldown  time.Duration `json:"cooldown" yaml:"cooldown"`
	MaxGasUSD float64       `json:"maxGasUsd" yaml:"max_gas_usd"`
}

// DefaultPolicy is the tick simulator's policy.
var DefaultPolicy = Policy{Threshold: DefaultThreshold}

// Decide reports whether to move from cur to best. When it declines, the
// returned string says which gate held the position.
func (p Policy) Decide(cur, best protocol.Protocol, sinceLast time.Duration, gasUSD float64) (bool, string) {
	if best.ID == cur.ID {
		return false, "already in best protocol"
	}
	if !Exceeds(best.APY, cur.APY, p.Threshold) {
		return false, fmt.Sprintf("APY difference %.2f%% does not exceed threshold %.2f%%", best.APY-cur.APY, p.Threshold)
	}
	if p.Cooldown > 0 && sinceLast < p.Cooldown {
		return false, fmt.Sprintf("cooldown active, %s remaining", (p.Cooldown - sinceLast).Round(time.Minute))
	}
	if p.MaxGasUSD > 0 && gasUSD > p.MaxGasUSD {
		return false, fmt.Sprintf("gas cost $%.2f exceeds limit $%.2f", gasUSD, p.MaxGasUSD)
	}
	return true, SwitchReason(cur, best)
}

// Exceeds reports whether best-cur is strictly greater than threshold. The
// comparison is done in decimal so two-place APYs never pick up float noise
// at the boundary.
func Exceeds(best, cur, threshold float64) bool {
	diff := decimal.NewFromFloat(best).Sub(decimal.NewFromFloat(cur))
	return diff.GreaterThan(decimal.NewFromFloat(threshold))
}

// SwitchReason is the human readable explanation attached to a switch.
func SwitchReason(cur, best protocol.Protocol) string {
	return fmt.Sprintf("%s APY (%v%%) is %.2f%% higher than %s (%v%%)",
		best.Name, best.APY, best.APY-cur.APY, cur.Name, cur.APY)
}

// TicksPerHour converts a tick interval into the accrual divisor.
func TicksPerHour(interval time.Duration) float64 {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return float64(time.Hour) / float64(interval)
}

// StepResult is the outcome of advancing the position by one tick.
type StepResult struct {
	Investment Investment   `json:"investment"`
	Event      *SwitchEvent `json:"event,omitempty"`
	Delta      float64      `json:"delta"`
	Claimed    float64      `json:"claimed"`
}

// Engine accrues rewards and applies the switch policy. It holds no state.
type Engine struct {
	Policy       Policy
	TickInterval time.Duration
}

func NewEngine(p Policy, tick time.Duration) Engine {
	return Engine{Policy: p, TickInterval: tick}
}

// Step advances inv by one tick against the already-fluctuated list.
// If the current protocol is missing nothing accrues and nothing switches.
func (e Engine) Step(inv Investment, list []protocol.Protocol, now time.Time, gasUSD float64) StepResult {
	cur, ok := protocol.Find(list, inv.ProtocolID)
	if !ok {
		return StepResult{Investment: inv}
	}

	rate := cur.APY / 100 / (365 * 24 * TicksPerHour(e.TickInterval))
	delta := inv.Amount * rate

	best, ok := protocol.Best(list, inv.ProtocolID)
	if ok {
		if move, reason := e.Policy.Decide(cur, best, now.Sub(inv.DepositedAt), gasUSD); move {
			claimed := inv.Rewards + delta
			ev := &SwitchEvent{
				ID:             uuid.NewString(),
				FromProtocol:   cur.Name,
				ToProtocol:     best.Name,
				Amount:         inv.Amount,
				RewardsClaimed: claimed,
				Reason:         reason,
				Timestamp:      now,
				FromAPY:        cur.APY,
				ToAPY:          best.APY,
			}
			inv.ProtocolID = best.ID
			inv.Rewards = 0
			inv.DepositedAt = now
			return StepResult{Investment: inv, Event: ev, Delta: delta, Claimed: claimed}
		}
	}

	inv.Rewards += delta
	return StepResult{Investment: inv, Delta: delta}
}
