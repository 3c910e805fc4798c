// Package components defines ECS components for the simulation.
//
// Every individual carries Position and Individual. Adult females also carry
// Female. Stage-specific behaviour is dispatched on Individual.Stage rather
// than on the component set, so brood never changes archetype until it
// emerges as an adult.
package components

// Stage is the life stage of an individual. Stages only ever advance.
type Stage uint8

const (
	StageEgg Stage = iota
	StageLarva
	StagePrepupa
	StagePupa
	StageInCocoon
	StageFemale
	NumStages
)

// Next returns the stage that follows s. Female has no successor.
func (s Stage) Next() Stage {
	if s >= StageFemale {
		return StageFemale
	}
	return s + 1
}

// CocoonPhase is the sub-phase of an InCocoon individual.
type CocoonPhase uint8

const (
	CocoonPrewinter CocoonPhase = iota
	CocoonOverwintering
	CocoonPreEmergence
)

// Sex of an individual. Males are carried through development and dropped at emergence.
type Sex uint8

const (
	SexFemale Sex = iota
	SexMale
)

// Parasitoid identifies the parasitoid taxon developing in a cell, if any.
type Parasitoid uint8

const (
	ParasitoidNone Parasitoid = iota
	ParasitoidBombylid
	ParasitoidCleptoparasite
	NumParasitoids
)

// DeathCause records why an individual left the population.
type DeathCause uint8

const (
	CauseNone DeathCause = iota
	CauseMortality
	CauseWinter
	CauseFailedEmergence
	CauseParasitoid
	CauseMaleEmerged
	CauseOldAge
	CauseEggsExhausted
	NumCauses
)

// FemaleState is the behavioural state of an adult female.
type FemaleState uint8

const (
	StateMaturing FemaleState = iota
	StateSeekingNest
	StateDispersing
	StateProvisioning
)
