package systems

import (
	"testing"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/config"
)

type richPollen struct{}

func (richPollen) PollenAvailability(x, y float64, month int) (float64, float64) {
	return 1e6, 1e6
}

func newTestBehaviour(t *testing.T, cfg *config.Config, land fixedLand) (*Behaviour, *NestRegistry) {
	t.Helper()
	cfg.Female.DailyMortality = 0
	cfg.Parasitism.DailyRate = 0
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	density := NewDensityGrid(cfg.Landscape.Width, cfg.Landscape.Height, cfg.Landscape.DensityCellSize)
	registry := NewNestRegistry(land, cfg.Derived.NestAreaCols, cfg.Derived.NestAreaRows, cfg.Landscape.NestAreaSize)
	model, err := NewParasitismModel(cfg.Parasitism, nil)
	if err != nil {
		t.Fatalf("NewParasitismModel: %v", err)
	}
	b := NewBehaviour(cfg, NewSexAllocation(cfg.SexRatio, cfg.Female.MassMin, cfg.Female.MassMax),
		NewForageResolver(cfg, richPollen{}, density), registry, model)
	return b, registry
}

func TestEggLoad(t *testing.T) {
	cfg := testConfig(t)
	cfg.Female.EggLoadJitter = 0
	cfg.Female.EggLoadSlope = 0
	cfg.Female.EggLoadConst = 5
	cfg.Female.TotalNestsPossible = 1
	b, _ := newTestBehaviour(t, cfg, fixedLand{capacity: 10})
	s := NewStream()

	if got := b.EggLoad(100, s); got != 5 {
		t.Errorf("EggLoad = %d, want 5", got)
	}
	cfg.Female.EggLoadConst = -3
	b, _ = newTestBehaviour(t, cfg, fixedLand{capacity: 10})
	if got := b.EggLoad(100, s); got != 1 {
		t.Errorf("EggLoad floor = %d, want 1", got)
	}
}

func TestEmerge(t *testing.T) {
	cfg := testConfig(t)
	b, _ := newTestBehaviour(t, cfg, fixedLand{capacity: 10})
	s := NewStream()
	s.Reset(1, 1, 1)

	ind := components.Individual{Stage: components.StageFemale, Age: 300, Mass: 10000}
	f := b.Emerge(&ind, &Day{Index: 12}, s)
	if ind.Age != 0 || ind.Mass != cfg.Female.MassMax || f.Mass != ind.Mass {
		t.Errorf("emerged age %d mass %v/%v, want 0 and clamped %v", ind.Age, ind.Mass, f.Mass, cfg.Female.MassMax)
	}
	if f.State != components.StateMaturing || f.BirthDay != 12 || f.EggLoad < 1 {
		t.Errorf("female = %+v", f)
	}
}

func TestFemaleLaysClutch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Female.ClutchMin, cfg.Female.ClutchMax = 3, 3
	cfg.Female.EggLoadJitter = 0
	cfg.Female.EggLoadSlope = 0
	cfg.Female.EggLoadConst = 3
	cfg.Female.TotalNestsPossible = 1
	b, registry := newTestBehaviour(t, cfg, fixedLand{capacity: 100})
	s := NewStream()

	ind := components.Individual{ID: 1, Stage: components.StageFemale, Mass: 100}
	f := components.Female{State: components.StateMaturing, Mass: 100, EggLoad: 3}
	pos := components.Position{X: 5000, Y: 5000}
	day := &Day{Month: 5, ForageHours: 10, Temperature: 20}

	eggs := 0
	for d := 0; d < 40 && !ind.Dead; d++ {
		day.Index = d
		s.Reset(9, d, ind.ID)
		ev := b.Step(&ind, &f, &pos, day, s)
		if ev.Egg != nil {
			eggs++
			if ev.Egg.Provision < b.alloc.MaleMinProvision() {
				t.Errorf("egg laid on %v mg", ev.Egg.Provision)
			}
			if ev.Egg.Nest == nil || ev.Egg.Nest.Cells[ev.Egg.Cell].Sex != ev.Egg.Sex {
				t.Errorf("egg does not match its cell")
			}
		}
		if f.EggsLaid != eggs {
			t.Fatalf("EggsLaid %d, counted %d", f.EggsLaid, eggs)
		}
	}

	if eggs != 3 {
		t.Errorf("laid %d eggs, want 3", eggs)
	}
	if !ind.Dead || ind.Cause != components.CauseEggsExhausted {
		t.Errorf("dead=%v cause=%v, want eggs_exhausted", ind.Dead, ind.Cause)
	}
	if f.Nest != nil || registry.Active() != 0 {
		t.Errorf("nest not released: %v active", registry.Active())
	}
	if f.NestsCompleted != 1 {
		t.Errorf("NestsCompleted = %d, want 1", f.NestsCompleted)
	}
}

func TestFemaleDispersesWithoutNests(t *testing.T) {
	cfg := testConfig(t)
	b, _ := newTestBehaviour(t, cfg, fixedLand{capacity: 0})
	s := NewStream()

	ind := components.Individual{ID: 2, Stage: components.StageFemale, Age: cfg.Female.PrenestingDays}
	f := components.Female{State: components.StateSeekingNest, Mass: 100, EggLoad: 10}
	pos := components.Position{X: 5000, Y: 5000}
	day := &Day{Month: 5, ForageHours: 10}

	for d := 0; d < cfg.Female.FailedDaysBeforeDispersal; d++ {
		s.Reset(3, d, ind.ID)
		b.Step(&ind, &f, &pos, day, s)
	}
	if f.State != components.StateDispersing {
		t.Fatalf("state = %v after %d failed days, want dispersing", f.State, cfg.Female.FailedDaysBeforeDispersal)
	}

	start := pos
	s.Reset(3, 99, ind.ID)
	b.Step(&ind, &f, &pos, day, s)
	if f.State != components.StateSeekingNest || f.Dispersals != 1 {
		t.Errorf("after dispersal: state %v dispersals %d", f.State, f.Dispersals)
	}
	if pos == start {
		t.Error("dispersal did not move the female")
	}
}

func TestFemaleOldAge(t *testing.T) {
	cfg := testConfig(t)
	b, registry := newTestBehaviour(t, cfg, fixedLand{capacity: 5})
	s := NewStream()

	nest, err := registry.RequestNest(1, 3, components.Position{X: 150, Y: 50})
	if err != nil {
		t.Fatalf("RequestNest: %v", err)
	}
	ind := components.Individual{ID: 3, Stage: components.StageFemale, Age: cfg.Female.Lifespan}
	f := components.Female{State: components.StateProvisioning, EggLoad: 10, Nest: nest}
	pos := nest.Pos

	ev := b.Step(&ind, &f, &pos, &Day{}, s)
	if !ind.Dead || ind.Cause != components.CauseOldAge {
		t.Errorf("dead=%v cause=%v, want old_age", ind.Dead, ind.Cause)
	}
	if !ev.NestClosed || registry.Active() != 0 {
		t.Error("nest of a dead female not released")
	}
}

// provisionedNest gives a female a registered nest whose open cell already
// holds provision mg, after prior closed cells.
func provisionedNest(t *testing.T, registry *NestRegistry, owner uint32, prior int, provision, target float64) *components.Nest {
	t.Helper()
	nest, err := registry.RequestNest(1, owner, components.Position{X: 150, Y: 50})
	if err != nil {
		t.Fatalf("RequestNest: %v", err)
	}
	for range prior {
		nest.Cells = append(nest.Cells, components.Cell{Provision: 200, Closed: true})
	}
	cell := nest.StartCell(target, 400, components.SexMale)
	cell.Provision = provision
	return nest
}

func TestFemaleAfterLaying(t *testing.T) {
	tests := []struct {
		name      string
		eggLoad   int
		planned   int
		prior     int // closed cells already in the nest
		atLimit   bool
		wantState components.FemaleState
		wantDead  bool
		wantClose bool
	}{
		{"clutch continues", 5, 3, 0, false, components.StateProvisioning, false, false},
		{"eggs remain after clutch", 5, 1, 0, false, components.StateSeekingNest, false, true},
		{"last egg", 1, 3, 0, false, components.StateProvisioning, true, true},
		{"lifespan reached", 5, 1, 0, true, components.StateProvisioning, true, true},
		{"nest full", 5, 10, 2, false, components.StateSeekingNest, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Female.MaxCellsPerNest = 3
			b, registry := newTestBehaviour(t, cfg, fixedLand{capacity: 5})
			s := NewStream()
			s.Reset(4, 0, 7)

			nest := provisionedNest(t, registry, 7, tt.prior, 150, 150)
			age := 10
			if tt.atLimit {
				age = cfg.Female.Lifespan - 1
			}
			ind := components.Individual{ID: 7, Stage: components.StageFemale, Age: age}
			f := components.Female{State: components.StateProvisioning, EggLoad: tt.eggLoad, ClutchPlanned: tt.planned, Nest: nest}
			pos := nest.Pos

			ev := b.Step(&ind, &f, &pos, &Day{Month: 5}, s)
			if ev.Egg == nil {
				t.Fatal("no egg laid on a provisioned cell")
			}
			if ev.NestClosed != tt.wantClose || f.HasNest() == tt.wantClose {
				t.Errorf("nest closed = %v, holds nest = %v; want closed %v", ev.NestClosed, f.HasNest(), tt.wantClose)
			}
			if ind.Dead != tt.wantDead {
				t.Fatalf("dead = %v, want %v", ind.Dead, tt.wantDead)
			}
			if tt.wantDead {
				if ind.Cause != components.CauseEggsExhausted {
					t.Errorf("cause = %v, want eggs_exhausted", ind.Cause)
				}
			} else if f.State != tt.wantState {
				t.Errorf("state = %v, want %v", f.State, tt.wantState)
			}
			if tt.wantClose && registry.Active() != 0 {
				t.Errorf("%d nests still active", registry.Active())
			}
		})
	}
}

func TestCellGiveUp(t *testing.T) {
	cfg := testConfig(t)
	maxDays := cfg.Female.MaxCellDays

	tests := []struct {
		name      string
		daysOpen  int // before today
		provision float64
		wantEgg   bool
	}{
		{"open too briefly", maxDays - 1, 150, false},
		{"below male minimum", maxDays + 5, 50, false},
		{"gives up as male", maxDays, 150, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, registry := newTestBehaviour(t, testConfig(t), fixedLand{capacity: 5})
			s := NewStream()
			s.Reset(5, 0, 8)

			nest := provisionedNest(t, registry, 8, 0, tt.provision, 1000)
			nest.OpenCell().DaysOpen = tt.daysOpen
			ind := components.Individual{ID: 8, Stage: components.StageFemale, Age: 10}
			f := components.Female{State: components.StateProvisioning, EggLoad: 5, ClutchPlanned: 3, Nest: nest}
			pos := nest.Pos

			// No flight hours: the cell gains nothing today.
			ev := b.Step(&ind, &f, &pos, &Day{Month: 5}, s)
			if (ev.Egg != nil) != tt.wantEgg {
				t.Fatalf("egg laid = %v, want %v", ev.Egg != nil, tt.wantEgg)
			}
			if !tt.wantEgg {
				if c := nest.OpenCell(); c == nil || c.DaysOpen != tt.daysOpen+1 {
					t.Errorf("cell should stay open one day longer")
				}
				return
			}
			if ev.Egg.Sex != components.SexMale || ev.Egg.Provision != tt.provision {
				t.Errorf("egg = %v on %v mg, want male on %v", ev.Egg.Sex, ev.Egg.Provision, tt.provision)
			}
		})
	}
}
