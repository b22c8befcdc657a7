package protocol

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func TestSeed(t *testing.T) {
	seed := Seed()
	require.Len(t, seed, 5)
	assert.Equal(t, "aave-v3", seed[0].ID)
	assert.Equal(t, 7.15, seed[4].APY)

	// Each call hands out an independent copy.
	seed[0].APY = 99
	assert.Equal(t, 5.82, Seed()[0].APY)
}

func TestFluctuateNeutralDraw(t *testing.T) {
	in := Seed()
	out := Fluctuate(in, fixedRand(0.5))

	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].ID, out[i].ID)
		assert.Equal(t, in[i].APY, out[i].APY)
		assert.Equal(t, Round2(in[i].APY*0.97), out[i].APR)
	}
}

func TestFluctuateExtremes(t *testing.T) {
	in := []Protocol{{ID: "a", APY: 4.00}}

	low := Fluctuate(in, fixedRand(0))
	assert.Equal(t, 3.25, low[0].APY)

	high := Fluctuate(in, fixedRand(0.999999))
	assert.InDelta(t, 4.75, high[0].APY, 0.01)
}

func TestFluctuateFloor(t *testing.T) {
	in := []Protocol{{ID: "a", APY: 0.6, APR: 0.58}}
	out := Fluctuate(in, fixedRand(0))

	assert.Equal(t, MinAPY, out[0].APY)
	assert.Equal(t, Round2(MinAPY*0.97), out[0].APR)
}

func TestFluctuateAPRFollowsRoundedAPY(t *testing.T) {
	// 4.106 rounds to 4.11; APR must be round2(4.11*0.97) = 3.99, not
	// round2(4.106*0.97) = 3.98.
	out := Fluctuate([]Protocol{{ID: "a", APY: 4.106}}, fixedRand(0.5))

	assert.Equal(t, 4.11, out[0].APY)
	assert.Equal(t, 3.99, out[0].APR)
}

func TestFluctuateDoesNotMutateInput(t *testing.T) {
	in := Seed()
	_ = Fluctuate(in, fixedRand(0))
	assert.Equal(t, Seed(), in)
}

func TestFluctuateEmpty(t *testing.T) {
	out := Fluctuate(nil, fixedRand(0.5))
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestFluctuateInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	list := Seed()
	for i := 0; i < 2000; i++ {
		list = Fluctuate(list, rng)
		for _, p := range list {
			require.GreaterOrEqual(t, p.APY, MinAPY)
			require.Equal(t, Round2(p.APY), p.APY)
			require.Equal(t, Round2(p.APY*0.97), p.APR, "apy %v", p.APY)
		}
	}
}

func TestBest(t *testing.T) {
	tests := []struct {
		name    string
		list    []Protocol
		exclude string
		wantID  string
		wantOK  bool
	}{
		{name: "seed picks yearn", list: Seed(), wantID: "yearn-v3", wantOK: true},
		{name: "exclude current best", list: Seed(), exclude: "yearn-v3", wantID: "curve-3pool", wantOK: true},
		{name: "unknown exclude ignored", list: Seed(), exclude: "nope", wantID: "yearn-v3", wantOK: true},
		{
			name:   "tie keeps input order",
			list:   []Protocol{{ID: "a", APY: 5}, {ID: "b", APY: 7}, {ID: "c", APY: 7}},
			wantID: "b", wantOK: true,
		},
		{
			name:    "only excluded element",
			list:    []Protocol{{ID: "a", APY: 5}},
			exclude: "a",
		},
		{name: "empty list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Best(tt.list, tt.exclude)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, got.ID)
				assert.NotEqual(t, tt.exclude, got.ID)
			}
		})
	}
}

func TestBestIsMaximum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	list := Seed()
	for i := 0; i < 200; i++ {
		list = Fluctuate(list, rng)
		best, ok := Best(list, "")
		require.True(t, ok)
		for _, p := range list {
			require.LessOrEqual(t, p.APY, best.APY)
		}
	}
}

func TestBestIgnoresInputOrder(t *testing.T) {
	top := Protocol{ID: "max", APY: 9.1}
	a := Protocol{ID: "a", APY: 4.2}
	b := Protocol{ID: "b", APY: 6.7}
	c := Protocol{ID: "c", APY: 5.5}

	orders := map[string][]Protocol{
		"max first":  {top, a, b, c},
		"max middle": {a, b, top, c},
		"max last":   {a, b, c, top},
		"reversed":   {c, top, b, a},
	}
	for name, list := range orders {
		t.Run(name, func(t *testing.T) {
			got, ok := Best(list, "")
			require.True(t, ok)
			assert.Equal(t, "max", got.ID)

			got, ok = Best(list, "max")
			require.True(t, ok)
			assert.Equal(t, "b", got.ID)
		})
	}
}

func TestFind(t *testing.T) {
	p, ok := Find(Seed(), "lido")
	assert.True(t, ok)
	assert.Equal(t, "Lido", p.Name)

	_, ok = Find(Seed(), "missing")
	assert.False(t, ok)
}

func TestSupportedAsset(t *testing.T) {
	assert.True(t, SupportedAsset("USDC"))
	assert.True(t, SupportedAsset("WBTC"))
	assert.False(t, SupportedAsset("usdc"))
	assert.False(t, SupportedAsset("DOGE"))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 5.65, Round2(5.6454))
	assert.Equal(t, 1.01, Round2(1.005))
	assert.Equal(t, 0.0, Round2(0))
}

func TestFormatTVL(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{12_400_000_000, "$12.40B"},
		{450_000_000, "$450.00M"},
		{7_000, "$7.00K"},
		{12, "$12.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTVL(tt.in))
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(Seed())
	assert.Equal(t, 5, reg.Len())

	snap := reg.Snapshot()
	snap[0].APY = 0
	p, _ := reg.Get("aave-v3")
	assert.Equal(t, 5.82, p.APY, "snapshot must be a copy")

	next := reg.Update(func(list []Protocol) []Protocol {
		return Fluctuate(list, fixedRand(0))
	})
	p, _ = reg.Get("aave-v3")
	assert.Equal(t, 5.07, p.APY)
	assert.Equal(t, next, reg.Snapshot())

	reg.Replace(nil)
	assert.Equal(t, 0, reg.Len())
}
