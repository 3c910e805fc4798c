package systems

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/config"
)

// CellContext is what a parasitism model sees of a cell when it is closed.
type CellContext struct {
	Pos      components.Position
	DaysOpen int
}

// ParasitismModel decides whether a freshly closed cell is parasitised,
// and by which taxon. Implementations must be safe for concurrent reads.
type ParasitismModel interface {
	Evaluate(cell CellContext, rng *rand.Rand) components.Parasitoid
}

// NewParasitismModel selects the configured model. pop is only used by the
// mechanistic model and may be nil otherwise.
func NewParasitismModel(cfg config.ParasitismConfig, pop *ParasitoidPopulation) (ParasitismModel, error) {
	switch cfg.Model {
	case "probability":
		return ProbabilityModel{DailyRate: cfg.DailyRate, BombylidFraction: cfg.BombylidFraction}, nil
	case "mechanistic":
		if pop == nil {
			return nil, fmt.Errorf("mechanistic parasitism needs a parasitoid population")
		}
		m := &MechanisticModel{pop: pop}
		copy(m.attack[:], cfg.AttackRates)
		return m, nil
	}
	return nil, fmt.Errorf("%w: parasitism model %q", config.ErrInvalid, cfg.Model)
}

// ProbabilityModel parasitises with a risk that grows linearly with the
// time a cell stood open.
type ProbabilityModel struct {
	DailyRate        float64
	BombylidFraction float64
}

// Risk returns min(1, DailyRate * daysOpen).
func (m ProbabilityModel) Risk(daysOpen int) float64 {
	return math.Min(1, m.DailyRate*float64(max(daysOpen, 0)))
}

// Evaluate implements ParasitismModel.
func (m ProbabilityModel) Evaluate(cell CellContext, rng *rand.Rand) components.Parasitoid {
	if !Chance(rng, m.Risk(cell.DaysOpen)) {
		return components.ParasitoidNone
	}
	if Chance(rng, m.BombylidFraction) {
		return components.ParasitoidBombylid
	}
	return components.ParasitoidCleptoparasite
}

// MechanisticModel derives risk from the local parasitoid density:
// 1 - exp(-attack * density * daysOpen) per taxon.
type MechanisticModel struct {
	pop    *ParasitoidPopulation
	attack [components.NumParasitoids - 1]float64
}

// Risk returns the per-taxon risk for a cell.
func (m *MechanisticModel) Risk(taxon components.Parasitoid, cell CellContext) float64 {
	d := m.pop.Density(taxon, cell.Pos)
	return 1 - math.Exp(-m.attack[taxon-1]*d*float64(max(cell.DaysOpen, 0)))
}

// Evaluate implements ParasitismModel. Taxa are tried in a fixed order.
func (m *MechanisticModel) Evaluate(cell CellContext, rng *rand.Rand) components.Parasitoid {
	for taxon := components.ParasitoidBombylid; taxon < components.NumParasitoids; taxon++ {
		if Chance(rng, m.Risk(taxon, cell)) {
			return taxon
		}
	}
	return components.ParasitoidNone
}

// ParasitoidPopulation is a grid of per-taxon parasitoid densities. It is
// read during the parallel phase and stepped at end of day.
type ParasitoidPopulation struct {
	cellSize   float64
	cols, rows int

	mortality [components.NumParasitoids - 1]float64
	dispersal [components.NumParasitoids - 1]float64
	density   [components.NumParasitoids - 1][]float64
	scratch   []float64
}

// NewParasitoidPopulation seeds every cell with a density drawn uniformly
// in [start_low, start_high].
func NewParasitoidPopulation(cfg config.ParasitismConfig, width, height float64, rng *rand.Rand) *ParasitoidPopulation {
	p := &ParasitoidPopulation{
		cellSize: cfg.CellSize,
		cols:     int(width/cfg.CellSize) + 1,
		rows:     int(height/cfg.CellSize) + 1,
	}
	n := p.cols * p.rows
	p.scratch = make([]float64, n)
	for t := range p.density {
		p.mortality[t] = cfg.DailyMortality[t]
		p.dispersal[t] = cfg.Dispersal[t]
		start := distuv.Uniform{Min: cfg.StartLow[t], Max: cfg.StartHigh[t], Src: rng}
		p.density[t] = make([]float64, n)
		for i := range p.density[t] {
			if cfg.StartHigh[t] > cfg.StartLow[t] {
				p.density[t][i] = start.Rand()
			} else {
				p.density[t][i] = cfg.StartLow[t]
			}
		}
	}
	return p
}

func (p *ParasitoidPopulation) cellIndex(pos components.Position) int {
	col := clampInt(int(pos.X/p.cellSize), 0, p.cols-1)
	row := clampInt(int(pos.Y/p.cellSize), 0, p.rows-1)
	return row*p.cols + col
}

// Density returns the taxon's density in the cell containing pos.
func (p *ParasitoidPopulation) Density(taxon components.Parasitoid, pos components.Position) float64 {
	if taxon == components.ParasitoidNone || taxon >= components.NumParasitoids {
		return 0
	}
	return p.density[taxon-1][p.cellIndex(pos)]
}

// Release adds one emerged parasitoid at pos.
func (p *ParasitoidPopulation) Release(taxon components.Parasitoid, pos components.Position) {
	if taxon == components.ParasitoidNone || taxon >= components.NumParasitoids {
		return
	}
	p.density[taxon-1][p.cellIndex(pos)]++
}

// Total returns the summed density of a taxon.
func (p *ParasitoidPopulation) Total(taxon components.Parasitoid) float64 {
	if taxon == components.ParasitoidNone || taxon >= components.NumParasitoids {
		return 0
	}
	total := 0.0
	for _, d := range p.density[taxon-1] {
		total += d
	}
	return total
}

// Step applies daily mortality, then moves the dispersal fraction of each
// cell equally to its four neighbours. Shares that would leave the grid stay.
func (p *ParasitoidPopulation) Step() {
	for t := range p.density {
		cur := p.density[t]
		next := p.scratch
		for i := range cur {
			cur[i] *= 1 - p.mortality[t]
			next[i] = cur[i]
		}
		for row := 0; row < p.rows; row++ {
			for col := 0; col < p.cols; col++ {
				i := row*p.cols + col
				share := cur[i] * p.dispersal[t] / 4
				if share == 0 {
					continue
				}
				for _, nb := range [4][2]int{{col - 1, row}, {col + 1, row}, {col, row - 1}, {col, row + 1}} {
					if nb[0] < 0 || nb[1] < 0 || nb[0] >= p.cols || nb[1] >= p.rows {
						continue
					}
					next[nb[1]*p.cols+nb[0]] += share
					next[i] -= share
				}
			}
		}
		p.density[t], p.scratch = next, cur
	}
}
