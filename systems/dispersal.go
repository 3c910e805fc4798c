package systems

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/config"
)

// Disperser draws dispersal moves: distance is Beta(alpha, beta) scaled to
// the maximum distance, bearing is uniform.
type Disperser struct {
	alpha, beta float64
	maxDist     float64
}

// NewDisperser builds a disperser from the female parameters.
func NewDisperser(f config.FemaleConfig) Disperser {
	return Disperser{alpha: f.DispersalAlpha, beta: f.DispersalBeta, maxDist: f.DispersalMaxDistance}
}

// Mean returns the expected dispersal distance in metres.
func (d Disperser) Mean() float64 {
	return d.alpha / (d.alpha + d.beta) * d.maxDist
}

// Distance draws one dispersal distance in metres.
func (d Disperser) Distance(s *Stream) float64 {
	b := distuv.Beta{Alpha: d.alpha, Beta: d.beta, Src: s.Source()}
	return b.Rand() * d.maxDist
}

// Move displaces p by one dispersal draw, kept inside the landscape.
func (d Disperser) Move(p components.Position, s *Stream, width, height float64) components.Position {
	dist := d.Distance(s)
	bearing := 2 * math.Pi * s.Float64()
	return p.Offset(dist*math.Cos(bearing), dist*math.Sin(bearing)).Clamp(width, height)
}
