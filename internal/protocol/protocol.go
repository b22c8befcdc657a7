package protocol

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Protocol is a yield venue as displayed to the user. APY and APR are
// percentages with two decimals.
type Protocol struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Chain    string  `json:"chain"`
	APY      float64 `json:"apy"`
	APR      float64 `json:"apr"`
	TVL      string  `json:"tvl"`
	Risk     Risk    `json:"risk"`
	Category string  `json:"category"`
}

// Assets lists the deposit assets the simulator accepts.
var Assets = []string{"USDC", "USDT", "DAI", "ETH", "WBTC"}

// SupportedAsset reports whether asset is one of Assets.
func SupportedAsset(asset string) bool {
	for _, a := range Assets {
		if a == asset {
			return true
		}
	}
	return false
}

// Seed returns a fresh copy of the static protocol set.
func Seed() []Protocol {
	return []Protocol{
		{ID: "aave-v3", Name: "Aave V3", Chain: "Ethereum", APY: 5.82, APR: 5.65, TVL: "$12.4B", Risk: RiskLow, Category: "Lending"},
		{ID: "compound-v3", Name: "Compound V3", Chain: "Ethereum", APY: 4.91, APR: 4.80, TVL: "$3.2B", Risk: RiskLow, Category: "Lending"},
		{ID: "lido", Name: "Lido", Chain: "Ethereum", APY: 3.95, APR: 3.88, TVL: "$33.1B", Risk: RiskLow, Category: "Staking"},
		{ID: "curve-3pool", Name: "Curve 3Pool", Chain: "Ethereum", APY: 6.23, APR: 6.05, TVL: "$1.8B", Risk: RiskMedium, Category: "DEX LP"},
		{ID: "yearn-v3", Name: "Yearn V3", Chain: "Ethereum", APY: 7.15, APR: 6.90, TVL: "$450M", Risk: RiskMedium, Category: "Yield Aggregator"},
	}
}

// Find returns the protocol with the given id.
func Find(list []Protocol, id string) (Protocol, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return Protocol{}, false
}

// Best returns the highest-APY protocol whose id differs from exclude.
// Equal APYs keep input order, so the earliest one wins.
func Best(list []Protocol, exclude string) (Protocol, bool) {
	candidates := make([]Protocol, 0, len(list))
	for _, p := range list {
		if exclude != "" && p.ID == exclude {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return Protocol{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].APY > candidates[j].APY
	})
	return candidates[0], true
}

// Round2 rounds v to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatTVL renders a USD amount the way the dashboard shows it.
func FormatTVL(usd float64) string {
	switch {
	case usd >= 1e9:
		return fmt.Sprintf("$%.2fB", usd/1e9)
	case usd >= 1e6:
		return fmt.Sprintf("$%.2fM", usd/1e6)
	case usd >= 1e3:
		return fmt.Sprintf("$%.2fK", usd/1e3)
	default:
		return fmt.Sprintf("$%.2f", usd)
	}
}
