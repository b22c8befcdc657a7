package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/web3-frozen/yield-optimizer/internal/autopilot"
)

func printSummary(w io.Writer, sum summary) {
	fmt.Fprintf(w, "\n  %d ticks, %s simulated\n\n", sum.Ticks, sum.Elapsed)

	current := ""
	if inv := sum.State.Investment; inv != nil {
		current = inv.ProtocolID
	}
	table := tablewriter.NewWriter(w)
	table.Header("Protocol", "Chain", "APY", "APR", "TVL", "Risk", "")
	for _, p := range sum.Protocols {
		marker := ""
		if p.ID == current {
			marker = "◀ invested"
		}
		table.Append(p.Name, p.Chain, pct(p.APY), pct(p.APR), p.TVL, string(p.Risk), marker)
	}
	table.Render()

	if len(sum.State.Events) > 0 {
		fmt.Fprintf(w, "\n  Switches (newest first)\n\n")
		events := tablewriter.NewWriter(w)
		events.Header("Time", "From", "To", "Claimed", "Reason")
		for _, ev := range sum.State.Events {
			events.Append(
				ev.Timestamp.Format("15:04:05"),
				ev.FromProtocol,
				ev.ToProtocol,
				decimal.NewFromFloat(ev.RewardsClaimed).StringFixed(6),
				ev.Reason,
			)
		}
		events.Render()
	}

	pending := 0.0
	if inv := sum.State.Investment; inv != nil {
		pending = inv.Rewards
	}
	fmt.Fprintf(w, "\n  Switches: %d  Claimed: %s  Pending: %s\n",
		sum.State.SwitchCount,
		decimal.NewFromFloat(sum.State.TotalRewards).StringFixed(6),
		decimal.NewFromFloat(pending).StringFixed(6))
}

func printAutopilot(w io.Writer, snap autopilot.Snapshot) {
	fmt.Fprintf(w, "\n  %d polls, current protocol %q at %s\n\n", snap.Polls, snap.Protocol, pct(snap.APY))

	table := tablewriter.NewWriter(w)
	table.Header("Time", "From", "To", "APY", "Rewards")
	for _, sw := range snap.History {
		table.Append(sw.At.Format("15:04:05"), sw.From, sw.To, pct(sw.APY), decimal.NewFromFloat(sw.Rewards).StringFixed(2))
	}
	table.Render()

	fmt.Fprintf(w, "\n  Switches: %d  Total rewards: %s\n", snap.Switches, decimal.NewFromFloat(snap.TotalRewards).StringFixed(2))
	if snap.LastError != "" {
		fmt.Fprintf(w, "  Last error: %s\n", snap.LastError)
	}
}

func pct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}
