package systems

import (
	"math/rand/v2"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/config"
)

// DegreeDays returns the degree-days temp contributes above threshold.
func DegreeDays(temp, threshold float64) float64 {
	if temp > threshold {
		return temp - threshold
	}
	return 0
}

// Chilling returns the chilling degree-days temp contributes below threshold.
func Chilling(temp, threshold float64) float64 {
	return DegreeDays(threshold, temp)
}

// BroodEvent reports what happened to one individual during a day.
type BroodEvent struct {
	Transitioned bool
	Completed    components.Stage // stage left today
	StageDays    int              // days spent in Completed
	Emerged      bool             // left the cocoon (female, dropped male or killed host)
	Released     components.Parasitoid
}

// Development applies the daily development and mortality rules to brood and
// cocooned adults. It holds no mutable state and is safe for concurrent use.
type Development struct {
	dev       config.DevelopmentConfig
	cocoon    config.CocoonConfig
	killStage [components.NumParasitoids]components.Stage
}

// NewDevelopment builds the development rules from a validated config.
func NewDevelopment(cfg *config.Config) *Development {
	d := &Development{dev: cfg.Development, cocoon: cfg.Cocoon}
	d.killStage[components.ParasitoidBombylid], _ = components.ParseStage(cfg.Parasitism.BombylidKillStage)
	d.killStage[components.ParasitoidCleptoparasite], _ = components.ParseStage(cfg.Parasitism.CleptoparasiteKillStage)
	return d
}

// KillStage returns the stage at whose completion the taxon kills its host.
func (d *Development) KillStage(p components.Parasitoid) components.Stage {
	return d.killStage[p]
}

// PrepupalRate looks up the daily prepupal development for a temperature.
func (d *Development) PrepupalRate(temp float64) float64 {
	rates := d.dev.Prepupa.Rates
	return rates[roundIndex(temp, len(rates))]
}

// WinterMortality is the probability of dying over winter given the
// accumulated chilling and the cocoon mass.
func (d *Development) WinterMortality(chilling, mass float64) float64 {
	c := d.cocoon
	return clamp01(c.WinterMortConst + c.WinterMortChillSlope*chilling - c.WinterMortMassSlope*mass)
}

// EmergenceProbability is the daily emergence chance on a warm enough day.
func (d *Development) EmergenceProbability(chilling float64) float64 {
	return clamp01(d.cocoon.EmergenceConst + d.cocoon.EmergenceSlope*chilling)
}

// Step advances one brood or cocooned individual by a day. Mortality is
// resolved first; a dead individual keeps no partial development.
func (d *Development) Step(ind *components.Individual, day *Day, rng *rand.Rand) BroodEvent {
	if ind.Dead || ind.Stage >= components.StageFemale {
		return BroodEvent{}
	}
	ind.Age++
	ind.StageAge++

	switch ind.Stage {
	case components.StageEgg:
		return d.degreeDayStage(ind, d.dev.Egg, day, rng)
	case components.StageLarva:
		return d.degreeDayStage(ind, d.dev.Larva, day, rng)
	case components.StagePrepupa:
		if Chance(rng, d.dev.Prepupa.DailyMortality) {
			ind.Kill(components.CauseMortality)
			return BroodEvent{}
		}
		ind.Development += day.PrepupalRate
		if ind.Development >= d.dev.Prepupa.TotalDays {
			return d.transition(ind)
		}
	case components.StagePupa:
		return d.degreeDayStage(ind, d.dev.Pupa, day, rng)
	case components.StageInCocoon:
		return d.cocoonStep(ind, day, rng)
	}
	return BroodEvent{}
}

func (d *Development) degreeDayStage(ind *components.Individual, st config.DegreeDayStage, day *Day, rng *rand.Rand) BroodEvent {
	if Chance(rng, st.DailyMortality) {
		ind.Kill(components.CauseMortality)
		return BroodEvent{}
	}
	ind.Development += DegreeDays(day.Temperature, st.Threshold)
	if ind.Development >= st.TotalDD {
		return d.transition(ind)
	}
	return BroodEvent{}
}

func (d *Development) cocoonStep(ind *components.Individual, day *Day, rng *rand.Rand) BroodEvent {
	c := d.cocoon
	switch ind.Cocoon {
	case components.CocoonPrewinter:
		if Chance(rng, c.PrewinterMortality) {
			ind.Kill(components.CauseMortality)
			return BroodEvent{}
		}
		ind.PrewinterDD += DegreeDays(day.Temperature, c.PrewinterThreshold)
		if day.Season.PrewinterEnded {
			ind.Cocoon = components.CocoonOverwintering
		}

	case components.CocoonOverwintering:
		if day.LateEmergence {
			ind.Kill(components.CauseFailedEmergence)
			return BroodEvent{}
		}
		ind.Development += Chilling(day.Temperature, c.ChillThreshold)
		if day.Season.OverwinterEnded && ind.Development >= c.RequiredChilling {
			if Chance(rng, d.WinterMortality(ind.Development, ind.Mass)) {
				ind.Kill(components.CauseWinter)
				return BroodEvent{}
			}
			ind.Cocoon = components.CocoonPreEmergence
		}

	case components.CocoonPreEmergence:
		if day.LateEmergence {
			ind.Kill(components.CauseFailedEmergence)
			return BroodEvent{}
		}
		ind.Development += Chilling(day.Temperature, c.ChillThreshold)
		if day.Temperature >= c.EmergenceTempThreshold && Chance(rng, d.EmergenceProbability(ind.Development)) {
			return d.transition(ind)
		}
	}
	return BroodEvent{}
}

// transition completes the current stage. A parasitised host dies at its
// parasitoid's kill stage; a male leaving the cocoon is dropped.
func (d *Development) transition(ind *components.Individual) BroodEvent {
	ev := BroodEvent{Transitioned: true, Completed: ind.Stage, StageDays: ind.StageAge}
	leavingCocoon := ind.Stage == components.StageInCocoon

	if ind.Parasitoid != components.ParasitoidNone && d.killStage[ind.Parasitoid] == ind.Stage {
		ind.Kill(components.CauseParasitoid)
		ev.Released = ind.Parasitoid
		ev.Emerged = leavingCocoon
		return ev
	}
	if leavingCocoon {
		ev.Emerged = true
		if ind.Sex == components.SexMale {
			ind.Kill(components.CauseMaleEmerged)
			return ev
		}
	}

	ind.Advance()
	if ind.Stage == components.StageInCocoon {
		ind.Cocoon = components.CocoonPrewinter
		ind.PrewinterDD = 0
	}
	return ev
}
