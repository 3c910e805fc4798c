package systems

import (
	"math"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/config"
)

// LaidEgg describes an egg laid today; the scheduler turns it into a new
// individual when intents are applied.
type LaidEgg struct {
	Nest       *components.Nest
	Cell       int
	Pos        components.Position
	Sex        components.Sex
	Parasitoid components.Parasitoid
	Provision  float64
}

// FemaleEvent summarises one female's day.
type FemaleEvent struct {
	Egg         *LaidEgg
	Foraged     float64 // mg collected today
	NestClosed  bool
	NestFounded bool
}

// Behaviour runs the adult female state machine. Its tables and the forage
// resolver are read-only; the nest registry is the only shared structure it
// writes.
type Behaviour struct {
	cfg        config.FemaleConfig
	alloc      *SexAllocation
	forage     *ForageResolver
	registry   *NestRegistry
	parasitism ParasitismModel
	disperser  Disperser

	width, height float64
}

// NewBehaviour wires the female state machine to its collaborators.
func NewBehaviour(cfg *config.Config, alloc *SexAllocation, forage *ForageResolver, registry *NestRegistry, parasitism ParasitismModel) *Behaviour {
	return &Behaviour{
		cfg:        cfg.Female,
		alloc:      alloc,
		forage:     forage,
		registry:   registry,
		parasitism: parasitism,
		disperser:  NewDisperser(cfg.Female),
		width:      cfg.Landscape.Width,
		height:     cfg.Landscape.Height,
	}
}

// Emerge turns a freshly emerged individual into an adult female. Body mass
// follows from the provision she developed on and sets her lifetime egg load.
func (b *Behaviour) Emerge(ind *components.Individual, day *Day, s *Stream) components.Female {
	c := b.cfg
	mass := clamp(c.MassFromProvisionSlope*ind.Mass+c.MassFromProvisionConst, c.MassMin, c.MassMax)
	ind.Mass = mass
	ind.Age = 0
	ind.StageAge = 0
	return components.Female{
		State:    components.StateMaturing,
		BirthDay: day.Index,
		Mass:     mass,
		EggLoad:  b.EggLoad(mass, s),
	}
}

// EggLoad draws the lifetime number of eggs for a female of the given mass.
// It is never below one.
func (b *Behaviour) EggLoad(mass float64, s *Stream) int {
	c := b.cfg
	j := c.EggLoadJitter
	load := int(c.TotalNestsPossible*(c.EggLoadSlope*mass+c.EggLoadConst) + s.Float64()*2*j - j)
	return max(load, 1)
}

// Step advances one female by a day. Background mortality and the lifespan
// limit apply in every state.
func (b *Behaviour) Step(ind *components.Individual, f *components.Female, pos *components.Position, day *Day, s *Stream) FemaleEvent {
	var ev FemaleEvent
	if ind.Dead {
		return ev
	}
	ind.Age++
	ind.StageAge++

	switch {
	case Chance(s.Rand, b.cfg.DailyMortality):
		b.die(ind, f, components.CauseMortality, &ev)
		return ev
	case ind.Age > b.cfg.Lifespan:
		b.die(ind, f, components.CauseOldAge, &ev)
		return ev
	case f.EggLoad <= 0:
		b.die(ind, f, components.CauseEggsExhausted, &ev)
		return ev
	}

	switch f.State {
	case components.StateMaturing:
		if ind.Age >= b.cfg.PrenestingDays {
			f.State = components.StateSeekingNest
		}
	case components.StateDispersing:
		*pos = b.disperser.Move(*pos, s, b.width, b.height)
		f.Dispersals++
		f.State = components.StateSeekingNest
	case components.StateSeekingNest:
		b.seekNest(ind, f, pos, s, &ev)
	case components.StateProvisioning:
		b.provision(ind, f, day, s, &ev)
	}
	return ev
}

// die kills the female and releases her nest. An open cell is abandoned.
func (b *Behaviour) die(ind *components.Individual, f *components.Female, cause components.DeathCause, ev *FemaleEvent) {
	ind.Kill(cause)
	if f.HasNest() {
		b.registry.ReleaseNest(f.Nest)
		f.Nest = nil
		ev.NestClosed = true
	}
}

func (b *Behaviour) seekNest(ind *components.Individual, f *components.Female, pos *components.Position, s *Stream, ev *FemaleEvent) {
	for attempt := 0; attempt < b.cfg.NestAttemptsPerDay; attempt++ {
		r := b.cfg.NestSearchRadius * math.Sqrt(s.Float64())
		a := 2 * math.Pi * s.Float64()
		site := pos.Offset(r*math.Cos(a), r*math.Sin(a))
		if !site.Inside(b.width, b.height) {
			continue
		}
		nest, err := b.registry.RequestNest(b.registry.AreaAt(site), ind.ID, site)
		if err != nil {
			continue
		}

		*pos = site
		f.Nest = nest
		f.State = components.StateProvisioning
		f.FailedSearchDays = 0
		f.CoarseFailures = 0
		f.ClutchLaid = 0
		f.ClutchPlanned = min(b.cfg.ClutchMin+s.IntN(b.cfg.ClutchMax-b.cfg.ClutchMin+1), f.EggLoad)
		ev.NestFounded = true
		return
	}

	f.FailedSearchDays++
	if f.FailedSearchDays >= b.cfg.FailedDaysBeforeDispersal {
		f.FailedSearchDays = 0
		f.State = components.StateDispersing
	}
}

func (b *Behaviour) provision(ind *components.Individual, f *components.Female, day *Day, s *Stream, ev *FemaleEvent) {
	nest := f.Nest
	cell := nest.OpenCell()
	if cell == nil {
		intended, target, femaleTarget := b.alloc.Plan(f.Mass, ind.Age, s.Rand)
		cell = nest.StartCell(target, femaleTarget, intended)
	}
	cell.DaysOpen++

	if day.ForageHours > 0 {
		fine := f.CoarseFailures >= b.forage.cfg.CoarseFailuresBeforeFine
		if patch, ok := b.forage.FindPatch(nest.Pos, day.ForageHours, day.Month, fine); ok {
			got := b.forage.Collect(ind.Age, day.ForageHours, patch)
			cell.Provision += got
			f.PollenCollected += got
			ev.Foraged = got
			f.CoarseFailures = 0
		} else {
			f.CoarseFailures++
		}
	}

	giveUp := cell.DaysOpen > b.cfg.MaxCellDays && cell.Provision >= b.alloc.MaleMinProvision()
	if cell.Provision < cell.TargetProvision && !giveUp {
		return
	}

	// Lay: the provision decides the sex, then the cell is exposed to parasitism.
	cell.Sex = b.alloc.Decide(cell.Provision, cell.FemaleTarget)
	cell.Parasitoid = b.parasitism.Evaluate(CellContext{Pos: nest.Pos, DaysOpen: cell.DaysOpen}, s.Rand)
	cell.Closed = true
	f.EggLoad--
	f.EggsLaid++
	f.ClutchLaid++
	ev.Egg = &LaidEgg{
		Nest:       nest,
		Cell:       len(nest.Cells) - 1,
		Pos:        nest.Pos,
		Sex:        cell.Sex,
		Parasitoid: cell.Parasitoid,
		Provision:  cell.Provision,
	}

	if f.ClutchLaid < f.ClutchPlanned && nest.ClosedCells() < b.cfg.MaxCellsPerNest && f.EggLoad > 0 {
		return
	}
	b.registry.ReleaseNest(nest)
	f.Nest = nil
	f.NestsCompleted++
	ev.NestClosed = true
	if f.EggLoad > 0 && ind.Age < b.cfg.Lifespan {
		f.State = components.StateSeekingNest
		return
	}
	ind.Kill(components.CauseEggsExhausted)
}
