package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/osmia/components"
)

// patchyPollen has pollen only east of x = east.
type patchyPollen struct {
	east float64
}

func (p patchyPollen) PollenAvailability(x, y float64, month int) (float64, float64) {
	if x >= p.east {
		return 1000, 100
	}
	return 0, 0
}

func TestMasksSortedNearestFirst(t *testing.T) {
	coarse := NewCoarseMask(600, 20, 8)
	if got, want := len(coarse.Offsets), 1+19*8; got != want {
		t.Errorf("coarse offsets = %d, want %d", got, want)
	}
	fine := NewFineMask(1500, 50)

	for name, m := range map[string]*ForageMask{"coarse": coarse, "fine": fine} {
		if m.Offsets[0].Dist != 0 {
			t.Errorf("%s: first offset at %v, want the nest", name, m.Offsets[0].Dist)
		}
		for i := 1; i < len(m.Offsets); i++ {
			if m.Offsets[i].Dist < m.Offsets[i-1].Dist {
				t.Fatalf("%s: offset %d nearer than %d", name, i, i-1)
			}
		}
	}
	last := coarse.Offsets[len(coarse.Offsets)-1]
	if math.Abs(last.Dist-600) > 1e-9 {
		t.Errorf("outer coarse ring at %v, want 600", last.Dist)
	}
	for _, o := range fine.Offsets {
		if o.Dist > 1500 {
			t.Fatalf("fine offset at %v outside max range", o.Dist)
		}
	}
}

func TestEfficiency(t *testing.T) {
	cfg := testConfig(t)
	r := NewForageResolver(cfg, patchyPollen{}, NewDensityGrid(1000, 1000, 100))

	if r.Efficiency(0) != 0 {
		t.Errorf("Efficiency(0) = %v, want 0", r.Efficiency(0))
	}
	half := r.Efficiency(19)
	if math.Abs(half-cfg.Forage.EfficiencyMax/(1+math.Exp((math.Log(19)-math.Log(18.888))*3.571))) > 1e-9 {
		t.Errorf("Efficiency(19) = %v", half)
	}
	if r.Efficiency(5) <= r.Efficiency(50) {
		t.Error("efficiency does not decline with age")
	}
	if r.Efficiency(500) != r.Efficiency(maxEfficiencyAge) {
		t.Error("ages past the table not clamped")
	}
}

func TestFindPatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Landscape.Width, cfg.Landscape.Height = 5000, 5000
	for m := range cfg.Forage.QuantityThresholds {
		cfg.Forage.QuantityThresholds[m] = 1
		cfg.Forage.QualityThresholds[m] = 1
	}
	origin := components.Position{X: 2500, Y: 2500}

	t.Run("nearest acceptable", func(t *testing.T) {
		r := NewForageResolver(cfg, patchyPollen{east: 2800}, NewDensityGrid(5000, 5000, 1000))
		p, ok := r.FindPatch(origin, 10, 5, false)
		if !ok {
			t.Fatal("no patch found")
		}
		if p.Pos.X < 2800 {
			t.Errorf("patch at %v has no pollen", p.Pos)
		}
		if math.Abs(p.Distance-origin.Dist(p.Pos)) > 1e-6 {
			t.Errorf("distance %v, want %v", p.Distance, origin.Dist(p.Pos))
		}
	})

	t.Run("out of coarse range", func(t *testing.T) {
		r := NewForageResolver(cfg, patchyPollen{east: 3300}, NewDensityGrid(5000, 5000, 1000))
		if _, ok := r.FindPatch(origin, 10, 5, false); ok {
			t.Error("coarse mask reached beyond the typical range")
		}
		if _, ok := r.FindPatch(origin, 10, 5, true); !ok {
			t.Error("fine mask did not reach pollen within max range")
		}
	})

	t.Run("time budget", func(t *testing.T) {
		r := NewForageResolver(cfg, patchyPollen{east: 2800}, NewDensityGrid(5000, 5000, 1000))
		// 300 m there and back at 14.4 km/h takes ~0.04 h.
		if _, ok := r.FindPatch(origin, 0.01, 5, false); ok {
			t.Error("patch accepted beyond the hour budget")
		}
	})

	t.Run("density discount", func(t *testing.T) {
		grid := NewDensityGrid(5000, 5000, 5000)
		for i := 0; i < 10000; i++ {
			grid.Add(origin)
		}
		cfg.Forage.DensityCoefficient = 1
		r := NewForageResolver(cfg, patchyPollen{east: 0}, grid)
		if _, ok := r.FindPatch(origin, 10, 5, false); ok {
			t.Error("crowded patch not discounted below threshold")
		}
	})
}

func TestCollect(t *testing.T) {
	cfg := testConfig(t)
	r := NewForageResolver(cfg, patchyPollen{}, NewDensityGrid(1000, 1000, 100))

	near := Patch{Distance: 0, Quantity: 1e6}
	if got, want := r.Collect(10, 8, near), r.Efficiency(10)*8; math.Abs(got-want) > 1e-9 {
		t.Errorf("time-limited Collect = %v, want %v", got, want)
	}
	poor := Patch{Distance: 0, Quantity: 5}
	if got, want := r.Collect(10, 8, poor), 5*cfg.Forage.PollenScoreToMg; math.Abs(got-want) > 1e-9 {
		t.Errorf("pollen-limited Collect = %v, want %v", got, want)
	}
	far := Patch{Distance: cfg.Forage.FlightSpeed * 5, Quantity: 1e6}
	if got := r.Collect(10, 8, far); got != 0 {
		t.Errorf("unreachable Collect = %v, want 0", got)
	}
}

func TestDensityGrid(t *testing.T) {
	g := NewDensityGrid(1000, 1000, 500)
	g.Add(components.Position{X: 10, Y: 10})
	g.Add(components.Position{X: 20, Y: 20})
	g.Add(components.Position{X: 900, Y: 900})
	g.Add(components.Position{X: -50, Y: 5000}) // clamped into a corner cell

	if got := g.At(components.Position{X: 100, Y: 100}); got != 2 {
		t.Errorf("At(origin cell) = %d, want 2", got)
	}
	if got := g.Total(); got != 4 {
		t.Errorf("Total() = %d, want 4", got)
	}
	g.Reset()
	if got := g.Total(); got != 0 {
		t.Errorf("Total() after Reset = %d, want 0", got)
	}
}
