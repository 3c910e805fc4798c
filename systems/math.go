package systems

import (
	"math"
	"math/rand/v2"
)

// clamp keeps v within [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clamp01 clamps a probability to the [0, 1] range.
func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

// clampInt keeps v within [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundIndex rounds a temperature half-up to a table index in [0, n).
func roundIndex(v float64, n int) int {
	return clampInt(int(math.Floor(v+0.5)), 0, n-1)
}

// Chance reports true with probability p. p outside [0, 1] is clamped.
func Chance(rng *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float64() < p
}
