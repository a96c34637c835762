package mc

import "math"

// baseSeed is the mulberry32 increment, reused as the seed-mixing starting
// point so that an all-zero input set still yields a non-trivial stream.
const baseSeed uint32 = 0x6d2b79f5

const epsilon = 1e-9

// seedMixer folds numeric simulation inputs into a 32-bit seed. Values are
// rounded to three decimals before mixing so that floating-point noise below
// millimeter scale cannot change the stream.
type seedMixer struct {
	seed uint32
}

func newSeedMixer() *seedMixer {
	return &seedMixer{seed: baseSeed}
}

func (m *seedMixer) mix(value float64) {
	scaled := int64(math.Round(value * 1000))
	m.seed ^= uint32(scaled)
	m.seed = (m.seed ^ (m.seed >> 16)) * 0x45d9f3b
	m.seed = (m.seed ^ (m.seed >> 16)) * 0x45d9f3b
	m.seed ^= m.seed >> 16
}

func (m *seedMixer) value() uint32 {
	if m.seed == 0 {
		return baseSeed
	}
	return m.seed
}

// rng is a mulberry32 generator. Given the same seed it produces the same
// sequence on every platform; simulation determinism depends on this.
type rng struct {
	state uint32
}

func newRNG(seed uint32) *rng {
	return &rng{state: seed}
}

func (r *rng) next() float64 {
	r.state += baseSeed
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// gaussian draws standard normal variates via Box-Muller, caching the second
// variate of each pair so consecutive draws consume uniforms in a fixed,
// reproducible pattern.
type gaussian struct {
	rng      *rng
	spare    float64
	hasSpare bool
}

func newGaussian(r *rng) *gaussian {
	return &gaussian{rng: r}
}

func (g *gaussian) next() float64 {
	if g.hasSpare {
		g.hasSpare = false
		return g.spare
	}
	u := 0.0
	for u <= epsilon {
		u = g.rng.next()
	}
	v := g.rng.next()
	mag := math.Sqrt(-2 * math.Log(u))
	angle := 2 * math.Pi * v
	g.spare = mag * math.Sin(angle)
	g.hasSpare = true
	return mag * math.Cos(angle)
}
