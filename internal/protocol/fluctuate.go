package protocol

import "math"

const (
	// MinAPY is the floor every fluctuated APY is clamped to.
	MinAPY = 0.5
	// maxSwing is the full width of the per-tick random walk (±0.75).
	maxSwing = 1.5
	aprRatio = 0.97
)

// Rand is the randomness the generator draws from. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Fluctuate returns a new slice with every APY nudged by a uniform random
// step in [-0.75, 0.75), floored at MinAPY, and APR re-derived from the
// rounded APY.
// The input slice is not modified.
func Fluctuate(list []Protocol, rng Rand) []Protocol {
	out := make([]Protocol, len(list))
	for i, p := range list {
		delta := (rng.Float64() - 0.5) * maxSwing
		p.APY = Round2(math.Max(MinAPY, p.APY+delta))
		p.APR = Round2(p.APY * aprRatio)
		out[i] = p
	}
	return out
}
