package systems

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestDegreeDays(t *testing.T) {
	temps := []float64{10, 15, 20, 18}
	want := []float64{0, 1.2, 6.2, 4.2}

	total := 0.0
	for i, temp := range temps {
		got := DegreeDays(temp, 13.8)
		if math.Abs(got-want[i]) > 1e-9 {
			t.Errorf("DegreeDays(%v, 13.8) = %v, want %v", temp, got, want[i])
		}
		total += got
	}
	if math.Abs(total-11.6) > 1e-9 {
		t.Errorf("accumulated = %v, want 11.6", total)
	}
}

func TestChilling(t *testing.T) {
	tests := []struct {
		temp, threshold, want float64
	}{
		{4, 10, 6},
		{10, 10, 0},
		{15, 10, 0},
		{-2, 10, 12},
	}
	for _, tt := range tests {
		if got := Chilling(tt.temp, tt.threshold); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Chilling(%v, %v) = %v, want %v", tt.temp, tt.threshold, got, tt.want)
		}
	}
}

func TestPrepupalRateLookup(t *testing.T) {
	cfg := testConfig(t)
	d := NewDevelopment(cfg)
	rates := cfg.Development.Prepupa.Rates

	tests := []struct {
		temp float64
		idx  int
	}{
		{-5, 0},
		{0.4, 0},
		{0.5, 1},
		{21.6, 22},
		{41.2, 41},
		{60, 41},
	}
	for _, tt := range tests {
		if got := d.PrepupalRate(tt.temp); got != rates[tt.idx] {
			t.Errorf("PrepupalRate(%v) = %v, want rates[%d] = %v", tt.temp, got, tt.idx, rates[tt.idx])
		}
	}
}

// thresholdFor returns the development needed to leave a degree-day or
// prepupal stage.
func thresholdFor(cfg *config.Config, s components.Stage) float64 {
	switch s {
	case components.StageEgg:
		return cfg.Development.Egg.TotalDD
	case components.StageLarva:
		return cfg.Development.Larva.TotalDD
	case components.StagePrepupa:
		return cfg.Development.Prepupa.TotalDays
	case components.StagePupa:
		return cfg.Development.Pupa.TotalDD
	}
	return math.Inf(1)
}

func TestDevelopmentMonotonic(t *testing.T) {
	cfg := testConfig(t)
	d := NewDevelopment(cfg)
	rng := rand.New(rand.NewPCG(1, 2))

	const n = 200
	inds := make([]components.Individual, n)
	for i := range inds {
		inds[i] = components.Individual{ID: uint32(i), Stage: components.StageEgg, Mass: 300}
		if i%3 == 0 {
			inds[i].Sex = components.SexMale
		}
	}

	for day := 0; day < 400; day++ {
		temp := -5 + 35*rng.Float64()
		dctx := &Day{Index: day, Temperature: temp, PrepupalRate: d.PrepupalRate(temp)}
		for i := range inds {
			ind := &inds[i]
			if ind.Dead {
				continue
			}
			before := *ind
			ev := d.Step(ind, dctx, rng)

			if ind.Stage < before.Stage {
				t.Fatalf("stage regressed %v -> %v", before.Stage, ind.Stage)
			}
			if ind.Dead {
				continue
			}
			if ind.Stage == before.Stage {
				if ind.Development < before.Development {
					t.Fatalf("development decreased in %v: %v -> %v", ind.Stage, before.Development, ind.Development)
				}
				continue
			}

			// A transition happened: it must be a single forward step
			// taken only once the requirement was met.
			if !ev.Transitioned || ev.Completed != before.Stage {
				t.Fatalf("unreported transition %v -> %v", before.Stage, ind.Stage)
			}
			if ind.Stage != before.Stage.Next() {
				t.Fatalf("skipped a stage: %v -> %v", before.Stage, ind.Stage)
			}
			if ind.Development != 0 {
				t.Fatalf("development not reset on entering %v", ind.Stage)
			}
			var gained float64
			switch before.Stage {
			case components.StageEgg:
				gained = DegreeDays(temp, cfg.Development.Egg.Threshold)
			case components.StageLarva:
				gained = DegreeDays(temp, cfg.Development.Larva.Threshold)
			case components.StagePrepupa:
				gained = dctx.PrepupalRate
			case components.StagePupa:
				gained = DegreeDays(temp, cfg.Development.Pupa.Threshold)
			}
			if before.Development+gained < thresholdFor(cfg, before.Stage) {
				t.Fatalf("%v left early at %v + %v", before.Stage, before.Development, gained)
			}
			if before.Development >= thresholdFor(cfg, before.Stage) {
				t.Fatalf("%v left late at %v", before.Stage, before.Development)
			}
		}
	}
}

func cocoonConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.Cocoon.PrewinterMortality = 0
	cfg.Cocoon.WinterMortConst = 0
	cfg.Cocoon.WinterMortChillSlope = 0
	cfg.Cocoon.EmergenceConst = 1
	return cfg
}

func TestZeroChillingNeverEmerges(t *testing.T) {
	cfg := cocoonConfig(t)
	d := NewDevelopment(cfg)
	rng := rand.New(rand.NewPCG(3, 4))

	ind := components.Individual{Stage: components.StageInCocoon, Cocoon: components.CocoonOverwintering}
	warm := &Day{
		Temperature: cfg.Cocoon.ChillThreshold + 5,
		Season:      SeasonFlags{PrewinterEnded: true, OverwinterEnded: true},
	}
	for i := 0; i < 365; i++ {
		ev := d.Step(&ind, warm, rng)
		if ev.Emerged || ind.Stage != components.StageInCocoon || ind.Cocoon != components.CocoonOverwintering {
			t.Fatalf("day %d: unchilled cocoon progressed (stage %v, phase %v)", i, ind.Stage, ind.Cocoon)
		}
	}
	if ind.Development != 0 {
		t.Errorf("chilling = %v, want 0", ind.Development)
	}
}

func TestNoEmergenceBeforeSpring(t *testing.T) {
	cfg := cocoonConfig(t)
	d := NewDevelopment(cfg)
	rng := rand.New(rand.NewPCG(5, 6))

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	season := NewSeasonState(cfg.Season, start, true)
	spring := time.Date(2021, time.Month(cfg.Season.Spring.Month), cfg.Season.Spring.Day, 0, 0, 0, 0, time.UTC)

	inds := make([]components.Individual, 50)
	for i := range inds {
		inds[i] = components.Individual{
			Stage:       components.StageInCocoon,
			Cocoon:      components.CocoonOverwintering,
			Development: cfg.Cocoon.RequiredChilling * 2,
		}
	}

	emerged := 0
	for date := start; date.Before(start.AddDate(0, 5, 0)); date = date.AddDate(0, 0, 1) {
		day := &Day{Date: date, Temperature: 12, Season: season.Flags()}
		for i := range inds {
			if ev := d.Step(&inds[i], day, rng); ev.Emerged {
				if !date.After(spring) {
					t.Fatalf("emerged on %s, spring is %s", date.Format(time.DateOnly), spring.Format(time.DateOnly))
				}
				emerged++
			}
		}
		season.EndOfDay(date, day.Temperature)
	}
	if emerged != len(inds) {
		t.Errorf("emerged %d of %d after spring", emerged, len(inds))
	}
}

func TestLateEmergenceFails(t *testing.T) {
	cfg := cocoonConfig(t)
	d := NewDevelopment(cfg)
	rng := rand.New(rand.NewPCG(7, 8))

	for _, phase := range []components.CocoonPhase{components.CocoonOverwintering, components.CocoonPreEmergence} {
		ind := components.Individual{Stage: components.StageInCocoon, Cocoon: phase}
		d.Step(&ind, &Day{Temperature: 0, LateEmergence: true}, rng)
		if !ind.Dead || ind.Cause != components.CauseFailedEmergence {
			t.Errorf("%v: dead=%v cause=%v, want failed_emergence", phase, ind.Dead, ind.Cause)
		}
	}
}

func TestEmergenceOutcomes(t *testing.T) {
	cfg := cocoonConfig(t)
	cfg.Parasitism.BombylidKillStage = "in_cocoon"
	cfg.Parasitism.CleptoparasiteKillStage = "larva"
	cfg.Development.Larva.DailyMortality = 0
	d := NewDevelopment(cfg)
	rng := rand.New(rand.NewPCG(9, 10))
	warm := &Day{Temperature: 20, Season: SeasonFlags{PrewinterEnded: true, OverwinterEnded: true}}

	tests := []struct {
		name        string
		ind         components.Individual
		wantStage   components.Stage
		wantDead    bool
		wantCause   components.DeathCause
		wantRelease components.Parasitoid
	}{
		{
			name:      "female becomes adult",
			ind:       components.Individual{Stage: components.StageInCocoon, Cocoon: components.CocoonPreEmergence, Development: 400},
			wantStage: components.StageFemale,
		},
		{
			name:      "male dropped",
			ind:       components.Individual{Stage: components.StageInCocoon, Cocoon: components.CocoonPreEmergence, Development: 400, Sex: components.SexMale},
			wantStage: components.StageInCocoon,
			wantDead:  true,
			wantCause: components.CauseMaleEmerged,
		},
		{
			name:        "bombylid host killed at emergence",
			ind:         components.Individual{Stage: components.StageInCocoon, Cocoon: components.CocoonPreEmergence, Development: 400, Parasitoid: components.ParasitoidBombylid},
			wantStage:   components.StageInCocoon,
			wantDead:    true,
			wantCause:   components.CauseParasitoid,
			wantRelease: components.ParasitoidBombylid,
		},
		{
			name:        "cleptoparasite host killed as larva",
			ind:         components.Individual{Stage: components.StageLarva, Development: cfg.Development.Larva.TotalDD, Parasitoid: components.ParasitoidCleptoparasite},
			wantStage:   components.StageLarva,
			wantDead:    true,
			wantCause:   components.CauseParasitoid,
			wantRelease: components.ParasitoidCleptoparasite,
		},
		{
			name:      "bombylid host survives larva",
			ind:       components.Individual{Stage: components.StageLarva, Development: cfg.Development.Larva.TotalDD, Parasitoid: components.ParasitoidBombylid},
			wantStage: components.StagePrepupa,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := tt.ind
			ev := d.Step(&ind, warm, rng)
			if !ev.Transitioned {
				t.Fatalf("no transition")
			}
			if ind.Stage != tt.wantStage || ind.Dead != tt.wantDead || ind.Cause != tt.wantCause {
				t.Errorf("got stage %v dead %v cause %v, want %v %v %v",
					ind.Stage, ind.Dead, ind.Cause, tt.wantStage, tt.wantDead, tt.wantCause)
			}
			if ev.Released != tt.wantRelease {
				t.Errorf("released %v, want %v", ev.Released, tt.wantRelease)
			}
		})
	}
}

func TestWinterMortalityClamped(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cocoon.WinterMortConst = 0.5
	cfg.Cocoon.WinterMortChillSlope = 0.01
	cfg.Cocoon.WinterMortMassSlope = 0.01
	d := NewDevelopment(cfg)

	if p := d.WinterMortality(1000, 0); p != 1 {
		t.Errorf("heavy chilling p = %v, want 1", p)
	}
	if p := d.WinterMortality(0, 1000); p != 0 {
		t.Errorf("heavy cocoon p = %v, want 0", p)
	}
	if a, b := d.WinterMortality(10, 100), d.WinterMortality(10, 50); a > b {
		t.Errorf("heavier cocoon more likely to die: %v > %v", a, b)
	}
}

func TestMortalityBeforeTransition(t *testing.T) {
	cfg := testConfig(t)
	cfg.Development.Egg.DailyMortality = 1
	cfg.Development.Larva.DailyMortality = 1
	cfg.Development.Prepupa.DailyMortality = 1
	cfg.Development.Pupa.DailyMortality = 1
	d := NewDevelopment(cfg)
	day := &Day{Temperature: 25, PrepupalRate: 1}

	tests := []struct {
		stage components.Stage
		total float64
	}{
		{components.StageEgg, cfg.Development.Egg.TotalDD},
		{components.StageLarva, cfg.Development.Larva.TotalDD},
		{components.StagePrepupa, cfg.Development.Prepupa.TotalDays},
		{components.StagePupa, cfg.Development.Pupa.TotalDD},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			// One more warm day would complete the stage.
			ind := components.Individual{Stage: tt.stage, Development: tt.total - 0.01}
			ev := d.Step(&ind, day, rand.New(rand.NewPCG(1, 2)))

			if !ind.Dead || ind.Cause != components.CauseMortality {
				t.Fatalf("dead=%v cause=%v, want mortality", ind.Dead, ind.Cause)
			}
			if ev.Transitioned || ind.Stage != tt.stage {
				t.Errorf("transitioned to %v on the day it died", ind.Stage)
			}
			if ind.Development != tt.total-0.01 {
				t.Errorf("development = %v, want unchanged %v", ind.Development, tt.total-0.01)
			}
		})
	}
}
