package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/web3-frozen/yield-optimizer/internal/rebalance"
	"github.com/web3-frozen/yield-optimizer/internal/sim"
)

func FormatSwitch(ev sim.SwitchEvent) string {
	return fmt.Sprintf("🔀 <b>Auto-switch</b>\n%s → %s\n%s\nAmount: %s\nRewards claimed: %s",
		ev.FromProtocol, ev.ToProtocol, ev.Reason,
		money(ev.Amount), token(ev.RewardsClaimed))
}

func FormatRebalance(r rebalance.Result) string {
	return fmt.Sprintf("♻️ <b>Rebalance #%d</b>\n%s → %s (+%s%% APY)\nClaimed: %s\nGas: $%s",
		r.Execution, r.From, r.To,
		decimal.NewFromFloat(r.APYDifference).StringFixed(2),
		money(r.Claimed),
		decimal.NewFromFloat(r.GasCostUSD).StringFixed(2))
}

func FormatStatus(st sim.State) string {
	var sb strings.Builder
	sb.WriteString("📊 <b>Simulation</b>\n")
	if st.Simulating {
		sb.WriteString("Status: running\n")
	} else {
		sb.WriteString("Status: paused\n")
	}
	if inv := st.Investment; inv != nil {
		fmt.Fprintf(&sb, "Position: %s %s in %s\n", money(inv.Amount), inv.Asset, inv.ProtocolID)
		fmt.Fprintf(&sb, "Pending rewards: %s\n", token(inv.Rewards))
	} else {
		sb.WriteString("Position: none\n")
	}
	if rec := st.Recommended; rec != nil {
		fmt.Fprintf(&sb, "Best: %s (%v%%)\n", rec.Name, rec.APY)
	}
	fmt.Fprintf(&sb, "Switches: %d\nLifetime rewards: %s", st.SwitchCount, token(st.TotalRewards))
	return sb.String()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func token(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(6)
}
