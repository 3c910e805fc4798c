package systems

import (
	"math"
	"math/rand/v2"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/config"
)

// SexAllocation holds the precomputed sex-ratio and provision tables,
// indexed by mother mass (in MassStep bins) and age in days. It is
// immutable after construction and shared by all workers.
type SexAllocation struct {
	massMin  float64
	massStep float64
	massBins int
	ages     int

	pFemale      []float64
	femaleTarget []float64

	maleTarget float64
	maleMin    float64
}

// NewSexAllocation builds the tables over [massMin, massMax].
func NewSexAllocation(sr config.SexRatioConfig, massMin, massMax float64) *SexAllocation {
	a := &SexAllocation{
		massMin:    massMin,
		massStep:   sr.MassStep,
		massBins:   int(math.Floor((massMax-massMin)/sr.MassStep)) + 1,
		ages:       sr.MaxAge + 1,
		maleTarget: sr.MaleTargetProvision,
		maleMin:    sr.MaleMinProvision,
	}
	a.pFemale = make([]float64, a.massBins*a.ages)
	a.femaleTarget = make([]float64, a.massBins*a.ages)

	al, ml := sr.AgeLogistic, sr.MassLinear
	cl, cm := sr.CocoonAgeLogistic, sr.CocoonMassLinear
	for m := 0; m < a.massBins; m++ {
		mass := massMin + float64(m)*sr.MassStep
		maxFemale := ml[0]*mass + ml[1]
		firstCocoon := cm[0]*mass + cm[1] + sr.LifetimeCocoonMassLoss/2
		for age := 0; age < a.ages; age++ {
			t := float64(age)
			i := m*a.ages + age
			a.pFemale[i] = clamp01(logistic(t, al[0], al[1], maxFemale, al[3]))
			cocoon := logistic(t, cl[0], cl[1], firstCocoon, cl[3])
			a.femaleTarget[i] = sr.ProvisionBase + sr.ProvisionPerCocoon*cocoon
		}
	}
	return a
}

// logistic moves between hi and lo around the inflection age. With a
// negative rate it starts near hi and decays towards lo.
func logistic(t, inflection, lo, hi, rate float64) float64 {
	return lo + (hi-lo)/(1+math.Exp(-rate*(t-inflection)))
}

func (a *SexAllocation) index(mass float64, age int) int {
	m := clampInt(int(math.Floor((mass-a.massMin)/a.massStep+0.5)), 0, a.massBins-1)
	return m*a.ages + clampInt(age, 0, a.ages-1)
}

// PFemale is the probability that a mother of the given mass and age
// intends her next cell to be female.
func (a *SexAllocation) PFemale(mass float64, age int) float64 {
	return a.pFemale[a.index(mass, age)]
}

// FemaleTarget is the provision mass (mg) a female cell needs.
func (a *SexAllocation) FemaleTarget(mass float64, age int) float64 {
	return a.femaleTarget[a.index(mass, age)]
}

// MaleTarget is the provision mass (mg) of a planned male cell.
func (a *SexAllocation) MaleTarget() float64 { return a.maleTarget }

// MaleMinProvision is the least provision a cell may be closed with.
func (a *SexAllocation) MaleMinProvision() float64 { return a.maleMin }

// Plan draws the intended sex for a new cell and returns its provision
// target together with the female threshold used at laying time.
func (a *SexAllocation) Plan(mass float64, age int, rng *rand.Rand) (intended components.Sex, target, femaleTarget float64) {
	femaleTarget = a.FemaleTarget(mass, age)
	if Chance(rng, a.PFemale(mass, age)) {
		return components.SexFemale, femaleTarget, femaleTarget
	}
	return components.SexMale, math.Min(a.maleTarget, femaleTarget), femaleTarget
}

// Decide returns the sex of the egg laid on a cell with the given provision.
// It is a single threshold: female iff provision reaches femaleTarget.
func (a *SexAllocation) Decide(provision, femaleTarget float64) components.Sex {
	if provision >= femaleTarget {
		return components.SexFemale
	}
	return components.SexMale
}
