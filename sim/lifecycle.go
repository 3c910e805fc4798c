package sim

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/systems"
	"github.com/pthm-cable/osmia/telemetry"
)

// stageCounts is the number of live individuals per stage after a day.
type stageCounts [components.NumStages]int

// spawnInitialPopulation creates the starting cohort: cocoons carrying the
// configured chilling, and optionally adult females.
func (s *Scheduler) spawnInitialPopulation() {
	pc := s.cfg.Population
	provision := distuv.Uniform{Min: pc.InitialProvisionMin, Max: pc.InitialProvisionMax, Src: s.rng}
	w, h := s.cfg.Landscape.Width, s.cfg.Landscape.Height

	phase := components.CocoonPrewinter
	if pc.InitialPrewinterEnded {
		phase = components.CocoonOverwintering
	}
	for i := 0; i < pc.InitialCocoons; i++ {
		pos := components.Position{X: s.rng.Float64() * w, Y: s.rng.Float64() * h}
		ind := components.Individual{
			ID:          s.allocID(),
			Stage:       components.StageInCocoon,
			Cocoon:      phase,
			Development: pc.InitialChilling,
			Mass:        provision.Rand(),
			Sex:         components.SexFemale,
		}
		s.spawner.NewEntity(&pos, &ind)
		s.population++
	}

	stream := systems.NewStream()
	day0 := &systems.Day{Index: 0, Date: s.date, Month: int(s.date.Month())}
	for i := 0; i < pc.InitialFemales; i++ {
		pos := components.Position{X: s.rng.Float64() * w, Y: s.rng.Float64() * h}
		ind := components.Individual{
			ID:    s.allocID(),
			Stage: components.StageFemale,
			Mass:  provision.Rand(),
			Sex:   components.SexFemale,
		}
		stream.Reset(s.seed, -1, ind.ID)
		female := s.behaviour.Emerge(&ind, day0, stream)
		e := s.spawner.NewEntity(&pos, &ind)
		s.femaleMap.Add(e, &female)
		s.population++
	}
}

func (s *Scheduler) allocID() uint32 {
	id := s.nextID
	s.nextID++
	return id
}

// applyIntents writes the computed state back to the world in snapshot
// order, creates the day's eggs, adds the Female component to new adults
// and removes the dead. It is single-threaded.
func (s *Scheduler) applyIntents() (stageCounts, error) {
	var counts stageCounts
	p := s.parallel
	s.toRemove = s.toRemove[:0]

	for i := range p.snapshots {
		snap := &p.snapshots[i]
		in := &p.intents[i]

		*s.posMap.Get(snap.Entity) = snap.Pos
		*s.indMap.Get(snap.Entity) = snap.Ind
		switch {
		case in.NewFemale:
			s.femaleMap.Add(snap.Entity, &snap.Female)
		case snap.IsFemale:
			*s.femaleMap.Get(snap.Entity) = snap.Female
		}

		s.recordBrood(snap, in)
		if snap.IsFemale && !in.NewFemale {
			if err := s.recordAdult(snap, in); err != nil {
				return counts, err
			}
		}

		if snap.Ind.Dead {
			s.toRemove = append(s.toRemove, snap.Entity)
			continue
		}
		counts[snap.Ind.Stage]++
	}

	// Today's eggs were spawned outside the snapshot.
	counts[components.StageEgg] += s.collector.EggsToday()

	for _, e := range s.toRemove {
		s.world.RemoveEntity(e)
	}
	s.population = 0
	for _, n := range counts {
		s.population += n
	}
	return counts, nil
}

// recordBrood handles transitions, emergence and deaths of non-adults.
func (s *Scheduler) recordBrood(snap *snapshot, in *intent) {
	ev := in.Brood
	if ev.Transitioned {
		s.collector.RecordStageLength(ev.Completed, ev.StageDays)
	}
	if ev.Emerged && ev.Released == components.ParasitoidNone {
		s.collector.RecordEmergence(snap.Ind.Sex)
	}
	if ev.Released != components.ParasitoidNone && s.parasitoids != nil {
		s.parasitoids.Release(ev.Released, snap.Pos)
	}
	if snap.Ind.Dead && !snap.IsFemale {
		s.collector.RecordDeath(snap.Ind.Cause)
	}
}

// recordAdult handles a female's laid egg, foraging and death.
func (s *Scheduler) recordAdult(snap *snapshot, in *intent) error {
	ev := in.Adult
	if ev.Egg != nil {
		s.spawnEgg(snap.Ind.ID, ev.Egg)
	}
	s.collector.RecordForage(ev.Foraged)
	s.collector.RecordNest(ev.NestFounded, ev.NestClosed)

	if !snap.Ind.Dead {
		return nil
	}
	s.collector.RecordDeath(snap.Ind.Cause)
	rec := telemetry.NewFemaleRecord(&snap.Ind, &snap.Female, s.day)
	s.fecundity.Add(rec)
	if s.sink != nil {
		return s.sink.WriteFemale(rec)
	}
	return nil
}

// spawnEgg creates the individual for a newly laid egg and links it to its cell.
func (s *Scheduler) spawnEgg(motherID uint32, egg *systems.LaidEgg) ecs.Entity {
	pos := egg.Pos
	ind := components.Individual{
		ID:         s.allocID(),
		Stage:      components.StageEgg,
		Mass:       egg.Provision,
		Sex:        egg.Sex,
		Parasitoid: egg.Parasitoid,
		NestID:     egg.Nest.ID,
		Cell:       egg.Cell,
		MotherID:   motherID,
	}
	egg.Nest.Cells[egg.Cell].OccupantID = ind.ID
	s.collector.RecordEgg(egg.Sex, egg.Parasitoid)
	return s.spawner.NewEntity(&pos, &ind)
}
