package systems

import (
	"math"
	"slices"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/config"
	"github.com/pthm-cable/osmia/environment"
)

// maxEfficiencyAge is the last age with its own efficiency table entry.
const maxEfficiencyAge = 100

// MaskOffset is one search location relative to a nest.
type MaskOffset struct {
	DX, DY float64
	Dist   float64
}

// ForageMask is a fixed search pattern, sorted nearest first.
type ForageMask struct {
	Offsets []MaskOffset
}

// NewCoarseMask builds rings at typicalRange/(steps-1) spacing, each
// sampled in the given number of directions, plus the nest itself.
func NewCoarseMask(typicalRange float64, steps, directions int) *ForageMask {
	step := typicalRange / float64(steps-1)
	offsets := []MaskOffset{{}}
	for ring := 1; ring < steps; ring++ {
		r := float64(ring) * step
		for d := 0; d < directions; d++ {
			a := 2 * math.Pi * float64(d) / float64(directions)
			offsets = append(offsets, MaskOffset{DX: r * math.Cos(a), DY: r * math.Sin(a), Dist: r})
		}
	}
	return newMask(offsets)
}

// NewFineMask builds a square lattice of spacing step inside maxRange.
func NewFineMask(maxRange, step float64) *ForageMask {
	n := int(maxRange / step)
	var offsets []MaskOffset
	for i := -n; i <= n; i++ {
		for j := -n; j <= n; j++ {
			dx, dy := float64(i)*step, float64(j)*step
			if d := math.Hypot(dx, dy); d <= maxRange {
				offsets = append(offsets, MaskOffset{DX: dx, DY: dy, Dist: d})
			}
		}
	}
	return newMask(offsets)
}

func newMask(offsets []MaskOffset) *ForageMask {
	slices.SortStableFunc(offsets, func(a, b MaskOffset) int {
		switch {
		case a.Dist < b.Dist:
			return -1
		case a.Dist > b.Dist:
			return 1
		}
		return 0
	})
	return &ForageMask{Offsets: offsets}
}

// Patch is a forage location accepted by the resolver.
type Patch struct {
	Pos      components.Position
	Distance float64
	Quantity float64 // discounted for competition and density
	Quality  float64
}

// ForageResolver finds pollen patches around a nest and converts foraging
// time into provision mass. It only reads shared state.
type ForageResolver struct {
	cfg     config.ForageConfig
	pollen  environment.PollenSource
	density *DensityGrid
	coarse  *ForageMask
	fine    *ForageMask

	width, height float64
	efficiency    [maxEfficiencyAge + 1]float64
}

// NewForageResolver precomputes the masks and the efficiency table.
func NewForageResolver(cfg *config.Config, pollen environment.PollenSource, density *DensityGrid) *ForageResolver {
	f := cfg.Forage
	r := &ForageResolver{
		cfg:     f,
		pollen:  pollen,
		density: density,
		coarse:  NewCoarseMask(f.TypicalRange, f.CoarseSteps, f.CoarseDirections),
		fine:    NewFineMask(f.MaxRange, f.FineStep),
		width:   cfg.Landscape.Width,
		height:  cfg.Landscape.Height,
	}
	for age := 1; age <= maxEfficiencyAge; age++ {
		r.efficiency[age] = f.EfficiencyMax /
			(1 + math.Exp((math.Log(float64(age))-math.Log(f.EfficiencyHalfAge))*f.EfficiencyShape))
	}
	return r
}

// Efficiency returns the pollen collection rate (mg/h) at an adult age.
func (r *ForageResolver) Efficiency(age int) float64 {
	return r.efficiency[clampInt(age, 0, maxEfficiencyAge)]
}

// RoundTrip returns the flight time in hours to a patch and back.
func (r *ForageResolver) RoundTrip(dist float64) float64 {
	return 2 * dist / r.cfg.FlightSpeed
}

// FindPatch returns the nearest mask location reachable within hourBudget
// whose discounted pollen quantity and quality exceed the month's thresholds.
func (r *ForageResolver) FindPatch(origin components.Position, hourBudget float64, month int, fine bool) (Patch, bool) {
	mask := r.coarse
	if fine {
		mask = r.fine
	}
	m := clampInt(month, 1, 12) - 1
	qThreshold := r.cfg.QuantityThresholds[m]
	qualThreshold := r.cfg.QualityThresholds[m]

	for _, o := range mask.Offsets {
		if r.RoundTrip(o.Dist) >= hourBudget {
			break
		}
		p := origin.Offset(o.DX, o.DY)
		if !p.Inside(r.width, r.height) {
			continue
		}
		q, qual := r.pollen.PollenAvailability(p.X, p.Y, month)
		effective := q * r.cfg.Competition / (1 + r.cfg.DensityCoefficient*float64(r.density.At(p)))
		if effective > qThreshold && qual > qualThreshold {
			return Patch{Pos: p, Distance: o.Dist, Quantity: effective, Quality: qual}, true
		}
	}
	return Patch{}, false
}

// Collect returns the provision mass (mg) gathered from a patch in a day of
// hours flight hours by a female of the given age.
func (r *ForageResolver) Collect(age int, hours float64, p Patch) float64 {
	working := hours - r.RoundTrip(p.Distance)
	if working <= 0 {
		return 0
	}
	return math.Min(r.Efficiency(age)*working, p.Quantity*r.cfg.PollenScoreToMg)
}
