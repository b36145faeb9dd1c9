package rand

import (
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/seehuhn/mt19937"
)

// NewMt19937 returns a Mersenne Twister backed generator. The same seed always
// yields the same stream.
func NewMt19937(seed int64) *rand.Rand {
	src := mt19937.New()
	src.Seed(seed)
	return rand.New(src)
}

// NewMt19937s returns n generators seeded with seed, seed+1, ..., seed+n-1.
func NewMt19937s(seed int64, n int) []*rand.Rand {
	rngs := make([]*rand.Rand, n)
	for i := range rngs {
		rngs[i] = NewMt19937(seed + int64(i))
	}
	return rngs
}

// Uniform samples from [low, high).
func Uniform(low, high float32, rng *rand.Rand) float32 {
	x := low + (high-low)*rng.Float32()
	if x >= high {
		// float32の丸めでhighに達する場合がある
		return math32.Nextafter(high, low)
	}
	return x
}

// IntRange samples from [low, high). It panics if high <= low.
func IntRange(low, high int, rng *rand.Rand) int {
	return low + rng.Intn(high-low)
}

func Bool(rng *rand.Rand) bool {
	return rng.Intn(2) == 1
}

func Rademacher(rng *rand.Rand) float32 {
	if Bool(rng) {
		return 1.0
	}
	return -1.0
}
