package telemetry

import (
	"github.com/pthm-cable/osmia/components"
)

// FemaleRecord is the terminal record of an adult female, written when she dies.
type FemaleRecord struct {
	ID              uint32  `csv:"id"`
	BirthDay        int     `csv:"birth_day"`
	DeathDay        int     `csv:"death_day"`
	Cause           string  `csv:"cause"`
	Mass            float64 `csv:"mass"`
	EggLoad         int     `csv:"egg_load"` // eggs she had left
	EggsLaid        int     `csv:"eggs_laid"`
	NestsCompleted  int     `csv:"nests_completed"`
	Dispersals      int     `csv:"dispersals"`
	PollenCollected float64 `csv:"pollen_mg"`
	PrewinterDD     float64 `csv:"prewinter_dd"`
}

// NewFemaleRecord builds the terminal record of a dead female.
func NewFemaleRecord(ind *components.Individual, f *components.Female, deathDay int) FemaleRecord {
	return FemaleRecord{
		ID:              ind.ID,
		BirthDay:        f.BirthDay,
		DeathDay:        deathDay,
		Cause:           ind.Cause.String(),
		Mass:            f.Mass,
		EggLoad:         f.EggLoad,
		EggsLaid:        f.EggsLaid,
		NestsCompleted:  f.NestsCompleted,
		Dispersals:      f.Dispersals,
		PollenCollected: f.PollenCollected,
		PrewinterDD:     ind.PrewinterDD,
	}
}

// Lifespan returns the adult lifespan in days.
func (r FemaleRecord) Lifespan() int {
	return r.DeathDay - r.BirthDay
}

// FecundityTracker accumulates eggs laid per female over the run, for the
// run summary and calibration.
type FecundityTracker struct {
	eggs      []float64
	lifespans []float64
}

// Add records a dead female.
func (ft *FecundityTracker) Add(r FemaleRecord) {
	ft.eggs = append(ft.eggs, float64(r.EggsLaid))
	ft.lifespans = append(ft.lifespans, float64(r.Lifespan()))
}

// Eggs summarises eggs laid per female.
func (ft *FecundityTracker) Eggs() Summary {
	return Summarize(ft.eggs)
}

// Lifespans summarises adult lifespans in days.
func (ft *FecundityTracker) Lifespans() Summary {
	return Summarize(ft.lifespans)
}
