package yields

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/web3-frozen/yield-optimizer/internal/cache"
	"github.com/web3-frozen/yield-optimizer/internal/metrics"
	"github.com/web3-frozen/yield-optimizer/internal/protocol"
)

const (
	cacheKey   = "yields:pools"
	DefaultTTL = 5 * time.Minute

	DefaultChain = "Ethereum"
	DefaultLimit = 10
	assetLimit   = 5
)

// SupportedProjects are the protocol families the rebalancer will move
// funds between.
var SupportedProjects = []string{"Aave", "Compound", "Yearn", "Beefy", "Harvest"}

// Fetcher is the upstream pool source. *Client satisfies it.
type Fetcher interface {
	FetchPools(ctx context.Context) ([]Pool, error)
}

// Quote is a protocol entry as served by the REST API.
type Quote struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Chain  string  `json:"chain"`
	APY    float64 `json:"apy"`
	TVL    string  `json:"tvl"`
	Symbol string  `json:"symbol"`
}

// Provider answers yield queries from cached upstream data and never
// surfaces transport errors: a failed fetch degrades to a static set.
type Provider struct {
	fetcher Fetcher
	cache   cache.Store
	ttl     time.Duration
	logger  *slog.Logger

	mu sync.Mutex // serializes upstream fetches
}

func NewProvider(f Fetcher, c cache.Store, ttl time.Duration, logger *slog.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{fetcher: f, cache: c, ttl: ttl, logger: logger}
}

// Yields returns the ingested pool list, from cache when fresh.
func (p *Provider) Yields(ctx context.Context) ([]Yield, error) {
	if ys, ok := p.cached(ctx); ok {
		return ys, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ys, ok := p.cached(ctx); ok {
		return ys, nil
	}
	return p.fetch(ctx)
}

// Refresh refetches upstream data regardless of cache state and reports
// how many pools were stored.
func (p *Provider) Refresh(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ys, err := p.fetch(ctx)
	if err != nil {
		return 0, err
	}
	return len(ys), nil
}

func (p *Provider) fetch(ctx context.Context) ([]Yield, error) {
	pools, err := p.fetcher.FetchPools(ctx)
	if err != nil {
		return nil, err
	}
	ys := Ingest(pools)
	if len(ys) == 0 {
		return nil, fmt.Errorf("yields: upstream returned no pools")
	}
	p.logger.Info("fetched pools", "count", len(ys))

	if p.cache != nil {
		if b, err := json.Marshal(ys); err == nil {
			if err := p.cache.Set(ctx, cacheKey, b, p.ttl); err != nil {
				p.logger.Warn("cache pools failed", "error", err)
			}
		}
	}
	return ys, nil
}

func (p *Provider) cached(ctx context.Context) ([]Yield, bool) {
	if p.cache == nil {
		return nil, false
	}
	b, ok := p.cache.Get(ctx, cacheKey)
	if !ok {
		return nil, false
	}
	var ys []Yield
	if err := json.Unmarshal(b, &ys); err != nil || len(ys) == 0 {
		return nil, false
	}
	return ys, true
}

// TopProtocols returns up to limit pools on chain with a positive APY,
// highest first. If upstream is unavailable the default set is returned.
func (p *Provider) TopProtocols(ctx context.Context, limit int, chain string) []Quote {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ys, err := p.Yields(ctx)
	if err != nil {
		p.logger.Warn("top protocols: using defaults", "error", err)
		metrics.YieldFallbackTotal.WithLabelValues("top").Inc()
		return DefaultQuotes()
	}

	filtered := top(ys, limit, chain)
	out := make([]Quote, len(filtered))
	for i, y := range filtered {
		out[i] = quote(fmt.Sprintf("protocol_%d", i), y)
	}
	return out
}

// ForAsset returns the top Ethereum pools whose symbol contains asset.
// Upstream failure yields an empty list.
func (p *Provider) ForAsset(ctx context.Context, asset string) []Quote {
	ys, err := p.Yields(ctx)
	if err != nil {
		p.logger.Warn("protocols for asset unavailable", "asset", asset, "error", err)
		metrics.YieldFallbackTotal.WithLabelValues("asset").Inc()
		return []Quote{}
	}

	upper := strings.ToUpper(asset)
	filtered := make([]Yield, 0)
	for _, y := range ys {
		if strings.Contains(y.Symbol, upper) && y.onChain(DefaultChain) {
			filtered = append(filtered, y)
		}
	}
	sortByAPY(filtered)
	if len(filtered) > assetLimit {
		filtered = filtered[:assetLimit]
	}

	prefix := strings.ToLower(asset)
	out := make([]Quote, len(filtered))
	for i, y := range filtered {
		out[i] = quote(fmt.Sprintf("%s_%d", prefix, i), y)
	}
	return out
}

// APYFor returns the APY of the first Ethereum pool whose project name
// contains name, or 0 when there is none.
func (p *Provider) APYFor(ctx context.Context, name string) float64 {
	ys, err := p.Yields(ctx)
	if err != nil {
		p.logger.Warn("protocol apy unavailable", "protocol", name, "error", err)
		metrics.YieldFallbackTotal.WithLabelValues("apy").Inc()
		return 0
	}
	needle := strings.ToLower(name)
	for _, y := range ys {
		if strings.Contains(strings.ToLower(y.Project), needle) && y.onChain(DefaultChain) {
			return protocol.Round2(y.APY)
		}
	}
	p.logger.Warn("protocol not found", "protocol", name)
	return 0
}

// ProjectAPY is the best pool APY for one project.
type ProjectAPY struct {
	Name   string  `json:"name"`
	APY    float64 `json:"apy"`
	TVLUsd float64 `json:"tvlUsd"`
}

// Comparison ranks supported projects on a chain by their best pool.
type Comparison struct {
	Protocols  []ProjectAPY `json:"protocols"`
	Best       string       `json:"bestProtocol"`
	BestAPY    float64      `json:"bestApy"`
	Current    string       `json:"currentProtocol"`
	CurrentAPY float64      `json:"currentApy"`
	Difference float64      `json:"difference"`
}

// Compare groups supported pools on chain by project, keeps each
// project's highest APY and reports how current stands against the best.
func (p *Provider) Compare(ctx context.Context, chain, current string) Comparison {
	ys, err := p.Yields(ctx)
	if err != nil {
		p.logger.Warn("compare: using default pools", "error", err)
		metrics.YieldFallbackTotal.WithLabelValues("compare").Inc()
		ys = defaultPools()
	}

	best := make(map[string]Yield)
	for _, y := range ys {
		if !supported(y.Project) || !y.onChain(chain) {
			continue
		}
		if prev, ok := best[y.Project]; !ok || y.APY > prev.APY {
			best[y.Project] = y
		}
	}
	if len(best) == 0 {
		return compareYields(defaultPools(), current)
	}
	list := make([]Yield, 0, len(best))
	for _, y := range best {
		list = append(list, y)
	}
	return compareYields(list, current)
}

func compareYields(list []Yield, current string) Comparison {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].APY == list[j].APY {
			return list[i].Project < list[j].Project
		}
		return list[i].APY > list[j].APY
	})

	c := Comparison{Current: current, Protocols: make([]ProjectAPY, len(list))}
	for i, y := range list {
		c.Protocols[i] = ProjectAPY{Name: y.Project, APY: y.APY, TVLUsd: y.TVLUsd}
		if strings.EqualFold(y.Project, current) {
			c.CurrentAPY = y.APY
		}
	}
	if len(list) > 0 {
		c.Best = list[0].Project
		c.BestAPY = list[0].APY
	}
	c.Difference = c.BestAPY - c.CurrentAPY
	return c
}

func supported(project string) bool {
	lp := strings.ToLower(project)
	for _, s := range SupportedProjects {
		if strings.Contains(lp, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func top(ys []Yield, limit int, chain string) []Yield {
	filtered := make([]Yield, 0, len(ys))
	for _, y := range ys {
		if chain != "" && !y.onChain(chain) {
			continue
		}
		if y.APY <= 0 {
			continue
		}
		filtered = append(filtered, y)
	}
	sortByAPY(filtered)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

func sortByAPY(ys []Yield) {
	sort.SliceStable(ys, func(i, j int) bool { return ys[i].APY > ys[j].APY })
}

func quote(id string, y Yield) Quote {
	return Quote{
		ID:     id,
		Name:   y.Project,
		Chain:  y.Chain,
		APY:    protocol.Round2(y.APY),
		TVL:    protocol.FormatTVL(y.TVLUsd),
		Symbol: y.Symbol,
	}
}

// DefaultQuotes is served when upstream data cannot be fetched.
func DefaultQuotes() []Quote {
	return []Quote{
		{ID: "aave-v3", Name: "Aave V3", Chain: "Ethereum", APY: 5.82, TVL: "$12.4B", Symbol: "USDC"},
		{ID: "compound-v3", Name: "Compound V3", Chain: "Ethereum", APY: 4.91, TVL: "$3.2B", Symbol: "USDC"},
		{ID: "lido", Name: "Lido", Chain: "Ethereum", APY: 3.95, TVL: "$33.1B", Symbol: "ETH"},
		{ID: "curve-3pool", Name: "Curve 3Pool", Chain: "Ethereum", APY: 6.23, TVL: "$1.8B", Symbol: "USDC"},
	}
}

func defaultPools() []Yield {
	return []Yield{
		{Pool: "aave-eth-usdc", Chain: "Ethereum", Project: "Aave", Symbol: "USDC", TVLUsd: 500_000_000, APY: 4.2},
		{Pool: "compound-eth-usdc", Chain: "Ethereum", Project: "Compound", Symbol: "USDC", TVLUsd: 400_000_000, APY: 3.8},
		{Pool: "yearn-eth-usdc", Chain: "Ethereum", Project: "Yearn", Symbol: "USDC", TVLUsd: 300_000_000, APY: 6.5},
		{Pool: "beefy-eth-usdc", Chain: "Ethereum", Project: "Beefy", Symbol: "USDC", TVLUsd: 250_000_000, APY: 5.9},
		{Pool: "harvest-eth-usdc", Chain: "Ethereum", Project: "Harvest", Symbol: "USDC", TVLUsd: 150_000_000, APY: 5.2},
	}
}

// LiveProtocols returns the top pools on the default chain as simulator
// protocols. When upstream is unavailable it returns the static seed.
func (p *Provider) LiveProtocols(ctx context.Context, limit int) []protocol.Protocol {
	if limit <= 0 {
		limit = assetLimit
	}
	ys, err := p.Yields(ctx)
	if err != nil {
		p.logger.Warn("live protocols: using seed", "error", err)
		metrics.YieldFallbackTotal.WithLabelValues("seed").Inc()
		return protocol.Seed()
	}
	picked := top(ys, limit, DefaultChain)
	if len(picked) == 0 {
		return protocol.Seed()
	}

	out := make([]protocol.Protocol, len(picked))
	for i, y := range picked {
		apy := protocol.Round2(y.APY)
		out[i] = protocol.Protocol{
			ID:       fmt.Sprintf("protocol_%d", i),
			Name:     y.Project,
			Chain:    y.Chain,
			APY:      apy,
			APR:      protocol.Round2(y.APY * 0.97),
			TVL:      protocol.FormatTVL(y.TVLUsd),
			Risk:     riskFor(y.TVLUsd),
			Category: y.Symbol,
		}
	}
	return out
}

func riskFor(tvlUsd float64) protocol.Risk {
	switch {
	case tvlUsd >= 1e9:
		return protocol.RiskLow
	case tvlUsd >= 1e7:
		return protocol.RiskMedium
	default:
		return protocol.RiskHigh
	}
}
