package yields

import "strings"

// Pool is one record from the upstream /pools feed. The APY fields are
// optional and may be null, so they decode into pointers.
type Pool struct {
	Pool       string   `json:"pool"`
	Chain      string   `json:"chain"`
	Project    string   `json:"project"`
	Symbol     string   `json:"symbol"`
	TVLUsd     float64  `json:"tvlUsd"`
	APY        *float64 `json:"apy"`
	APYBase    *float64 `json:"apyBase"`
	APYReward  *float64 `json:"apyReward"`
	APYMean30d *float64 `json:"apyMean30d"`
	Stablecoin bool     `json:"stablecoin"`
}

// EffectiveAPY resolves the pool's yield with priority
// apy > apyBase > apyMean30d, taking the first positive value, else 0.
func (p Pool) EffectiveAPY() float64 {
	for _, v := range []*float64{p.APY, p.APYBase, p.APYMean30d} {
		if v != nil && *v > 0 {
			return *v
		}
	}
	return 0
}

// Yield is a pool after ingestion: one resolved APY and nothing optional.
type Yield struct {
	Pool    string  `json:"pool"`
	Chain   string  `json:"chain"`
	Project string  `json:"project"`
	Symbol  string  `json:"symbol"`
	TVLUsd  float64 `json:"tvlUsd"`
	APY     float64 `json:"apy"`
}

// Ingest converts raw pools into yields. This is the only place the
// optional APY fields are interpreted.
func Ingest(pools []Pool) []Yield {
	out := make([]Yield, 0, len(pools))
	for _, p := range pools {
		out = append(out, Yield{
			Pool:    p.Pool,
			Chain:   p.Chain,
			Project: p.Project,
			Symbol:  p.Symbol,
			TVLUsd:  p.TVLUsd,
			APY:     p.EffectiveAPY(),
		})
	}
	return out
}

func (y Yield) onChain(chain string) bool {
	return strings.Contains(strings.ToLower(y.Chain), strings.ToLower(chain))
}
