// Package systems implements the per-day rules of the simulation: brood
// development, the female behaviour state machine, foraging, nesting and
// parasitism. Shared structures written during the parallel phase are the
// NestRegistry (mutex) and the DensityGrid (atomic counters).
package systems

import (
	"sync/atomic"

	"github.com/pthm-cable/osmia/components"
)

// DensityGrid counts live adult females per coarse cell. It is reset and
// rebuilt every day; Add is safe for concurrent use.
type DensityGrid struct {
	cellSize float64
	cols     int
	rows     int
	counts   []atomic.Int32
}

// NewDensityGrid creates a grid covering a width x height landscape.
func NewDensityGrid(width, height, cellSize float64) *DensityGrid {
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	return &DensityGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		counts:   make([]atomic.Int32, cols*rows),
	}
}

// Reset zeroes every cell.
func (g *DensityGrid) Reset() {
	for i := range g.counts {
		g.counts[i].Store(0)
	}
}

// Add counts one female at p.
func (g *DensityGrid) Add(p components.Position) {
	g.counts[g.cellIndex(p.X, p.Y)].Add(1)
}

// At returns the number of females in the cell containing p.
func (g *DensityGrid) At(p components.Position) int {
	return int(g.counts[g.cellIndex(p.X, p.Y)].Load())
}

// Total returns the number of females counted in all cells.
func (g *DensityGrid) Total() int {
	total := 0
	for i := range g.counts {
		total += int(g.counts[i].Load())
	}
	return total
}

// cellIndex returns the flat index for a landscape position.
func (g *DensityGrid) cellIndex(x, y float64) int {
	col := int(x / g.cellSize)
	row := int(y / g.cellSize)

	// Clamp to valid range
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}

	return row*g.cols + col
}
