// Package sim runs the daily population update on an ECS world.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/config"
	"github.com/pthm-cable/osmia/environment"
	"github.com/pthm-cable/osmia/systems"
	"github.com/pthm-cable/osmia/telemetry"
)

// Options configures a Scheduler beyond the model parameters.
type Options struct {
	Seed    int64
	Workers int // overrides run.workers when > 0

	// Environment and LandCover default to a synthetic landscape built
	// from the seed.
	Environment environment.Provider
	LandCover   environment.LandCover

	Sink     telemetry.Sink           // daily records and female records; may be nil
	Output   *telemetry.OutputManager // perf, stage-length and bookmark tables; may be nil
	LogStats bool
}

// DayResult summarises one completed day.
type DayResult struct {
	Stats     telemetry.DayStats
	Bookmarks []telemetry.Bookmark
	Extinct   bool
}

// Scheduler owns the population and advances it one day at a time.
type Scheduler struct {
	cfg  *config.Config
	seed uint64
	rng  *rand.Rand // setup draws only; daily draws use per-individual streams

	world     *ecs.World
	spawner   *ecs.Map2[components.Position, components.Individual]
	filter    *ecs.Filter2[components.Position, components.Individual]
	posMap    *ecs.Map1[components.Position]
	indMap    *ecs.Map1[components.Individual]
	femaleMap *ecs.Map1[components.Female]

	env         environment.Provider
	development *systems.Development
	behaviour   *systems.Behaviour
	registry    *systems.NestRegistry
	density     *systems.DensityGrid
	parasitoids *systems.ParasitoidPopulation // nil unless the mechanistic model is used
	season      *systems.SeasonState

	parallel *parallelState
	today    systems.Day
	toRemove []ecs.Entity

	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	bookmarks *telemetry.BookmarkDetector
	fecundity telemetry.FecundityTracker
	sink      telemetry.Sink
	output    *telemetry.OutputManager
	logStats  bool

	day        int
	date       time.Time
	nextID     uint32
	population int
}

// New builds a scheduler and spawns the initial cohort. cfg must be finalized.
func New(cfg *config.Config, opts Options) (*Scheduler, error) {
	env, land := opts.Environment, opts.LandCover
	if env == nil || land == nil {
		synth := environment.NewSynthetic(cfg, opts.Seed)
		if env == nil {
			env = synth
		}
		if land == nil {
			land = synth
		}
	}

	seed := uint64(opts.Seed)
	rng := rand.New(rand.NewPCG(seed, 0x05e1a))

	var pop *systems.ParasitoidPopulation
	if cfg.Parasitism.Model == "mechanistic" {
		pop = systems.NewParasitoidPopulation(cfg.Parasitism, cfg.Landscape.Width, cfg.Landscape.Height, rng)
	}
	model, err := systems.NewParasitismModel(cfg.Parasitism, pop)
	if err != nil {
		return nil, err
	}

	density := systems.NewDensityGrid(cfg.Landscape.Width, cfg.Landscape.Height, cfg.Landscape.DensityCellSize)
	registry := systems.NewNestRegistry(land, cfg.Derived.NestAreaCols, cfg.Derived.NestAreaRows, cfg.Landscape.NestAreaSize)
	alloc := systems.NewSexAllocation(cfg.SexRatio, cfg.Female.MassMin, cfg.Female.MassMax)
	forage := systems.NewForageResolver(cfg, env, density)

	workers := cfg.Run.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	world := ecs.NewWorld()
	s := &Scheduler{
		cfg:  cfg,
		seed: seed,
		rng:  rng,

		world:     world,
		spawner:   ecs.NewMap2[components.Position, components.Individual](world),
		filter:    ecs.NewFilter2[components.Position, components.Individual](world),
		posMap:    ecs.NewMap1[components.Position](world),
		indMap:    ecs.NewMap1[components.Individual](world),
		femaleMap: ecs.NewMap1[components.Female](world),

		env:         env,
		development: systems.NewDevelopment(cfg),
		behaviour:   systems.NewBehaviour(cfg, alloc, forage, registry, model),
		registry:    registry,
		density:     density,
		parasitoids: pop,
		season:      systems.NewSeasonState(cfg.Season, cfg.Derived.StartDate, cfg.Population.InitialPrewinterEnded),

		parallel: newParallelState(workers),

		collector: telemetry.NewCollector(),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		bookmarks: telemetry.NewBookmarkDetector(),
		sink:      opts.Sink,
		output:    opts.Output,
		logStats:  opts.LogStats,

		date:   cfg.Derived.StartDate,
		nextID: 1,
	}

	s.spawnInitialPopulation()
	return s, nil
}

// Close stops the worker pool.
func (s *Scheduler) Close() {
	s.parallel.stopWorkers()
}

// Day returns the index of the next day to simulate.
func (s *Scheduler) Day() int { return s.day }

// Date returns the calendar date of the next day to simulate.
func (s *Scheduler) Date() time.Time { return s.date }

// Population returns the number of live individuals.
func (s *Scheduler) Population() int { return s.population }

// Registry exposes the nest registry for inspection.
func (s *Scheduler) Registry() *systems.NestRegistry { return s.registry }

// Fecundity returns the eggs-per-female and lifespan records of dead females.
func (s *Scheduler) Fecundity() *telemetry.FecundityTracker { return &s.fecundity }

// AdvanceOneDay runs the four daily phases: environment, pre-update,
// main update and end-of-day bookkeeping. Environment failures are
// returned with the day they occurred on; individual outcomes never fail.
func (s *Scheduler) AdvanceOneDay(ctx context.Context) (DayResult, error) {
	if err := ctx.Err(); err != nil {
		return DayResult{}, err
	}
	s.perf.StartDay()

	s.perf.StartPhase(telemetry.PhaseWeather)
	if err := s.prepareDay(); err != nil {
		return DayResult{}, fmt.Errorf("day %d (%s): %w", s.day, s.date.Format(time.DateOnly), err)
	}

	s.perf.StartPhase(telemetry.PhasePreUpdate)
	s.takeSnapshots()
	s.parallel.run(s, passDensity)

	s.perf.StartPhase(telemetry.PhaseMainUpdate)
	s.parallel.run(s, passUpdate)

	s.perf.StartPhase(telemetry.PhaseApply)
	counts, err := s.applyIntents()
	if err != nil {
		return DayResult{}, fmt.Errorf("day %d: %w", s.day, err)
	}

	s.perf.StartPhase(telemetry.PhaseEndOfDay)
	s.endOfDay()

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	res, err := s.flushTelemetry(counts)
	s.perf.EndDay()
	if err != nil {
		return res, fmt.Errorf("day %d: %w", s.day, err)
	}

	s.day++
	s.date = s.date.AddDate(0, 0, 1)
	return res, nil
}

// Run advances until days have passed, the population is extinct or ctx
// is cancelled. onDay, if set, sees every result.
func (s *Scheduler) Run(ctx context.Context, days int, onDay func(DayResult) error) error {
	for i := 0; i < days; i++ {
		res, err := s.AdvanceOneDay(ctx)
		if err != nil {
			return err
		}
		if onDay != nil {
			if err := onDay(res); err != nil {
				return err
			}
		}
		if res.Extinct {
			return nil
		}
	}
	return nil
}

// prepareDay fetches and validates the weather and builds the read-only
// day context shared by the workers.
func (s *Scheduler) prepareDay() error {
	w, err := s.env.DailyWeather(s.date)
	if err != nil {
		return err
	}
	if err := environment.Validate(w, s.date, s.cfg.Weather); err != nil {
		return err
	}

	s.today = systems.Day{
		Index:         s.day,
		Date:          s.date,
		Month:         int(s.date.Month()),
		Temperature:   w.Temperature,
		ForageHours:   float64(environment.ForageHours(w, s.cfg.Forage)),
		PrepupalRate:  s.development.PrepupalRate(w.Temperature),
		Season:        s.season.Flags(),
		LateEmergence: s.season.IsLateEmergence(s.date),
	}
	s.density.Reset()
	return nil
}

// takeSnapshots copies every live individual into the snapshot buffer.
func (s *Scheduler) takeSnapshots() {
	p := s.parallel
	p.snapshots = p.snapshots[:0]

	query := s.filter.Query()
	for query.Next() {
		pos, ind := query.Get()
		if ind.Dead {
			continue
		}
		snap := snapshot{Entity: query.Entity(), Pos: *pos, Ind: *ind}
		if ind.Stage == components.StageFemale {
			snap.Female = *s.femaleMap.Get(snap.Entity)
			snap.IsFemale = true
		}
		p.snapshots = append(p.snapshots, snap)
	}

	n := len(p.snapshots)
	if cap(p.intents) < n {
		p.intents = make([]intent, n)
	}
	p.intents = p.intents[:n]
}

// endOfDay updates the season flags and the parasitoid population, and
// reports stage lengths at the annual reset.
func (s *Scheduler) endOfDay() {
	s.season.EndOfDay(s.date, s.today.Temperature)
	if s.parasitoids != nil {
		s.parasitoids.Step()
	}
	if s.today.LateEmergence {
		s.writeStageLengths(fmt.Sprintf("%d", s.date.Year()))
	}
}
