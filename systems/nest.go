package systems

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/environment"
)

var (
	// ErrAreaUnsuitable is returned when the area has no nesting habitat.
	ErrAreaUnsuitable = errors.New("nest area unsuitable")
	// ErrNoCapacity is returned when every nest slot in the area is taken.
	ErrNoCapacity = errors.New("nest area at capacity")
)

// NestArea is one registry entry. Active never exceeds Capacity.
type NestArea struct {
	Capacity int
	Active   int
	Suitable bool
}

// NestRegistry tracks nest occupancy per nest area. Nest areas are square
// cells of the landscape whose capacity comes from the land cover.
type NestRegistry struct {
	mu     sync.Mutex
	areas  []NestArea
	active int
	nextID uint32

	cols, rows int
	size       float64
}

// NewNestRegistry builds the registry for a cols x rows grid of areas of
// the given size, reading each area's capacity once.
func NewNestRegistry(land environment.LandCover, cols, rows int, size float64) *NestRegistry {
	r := &NestRegistry{
		areas: make([]NestArea, cols*rows),
		cols:  cols,
		rows:  rows,
		size:  size,
	}
	for i := range r.areas {
		capacity, suitable := land.NestingSuitability(i)
		r.areas[i] = NestArea{Capacity: capacity, Suitable: suitable && capacity > 0}
	}
	return r
}

// AreaAt returns the area index containing p, or -1 outside the grid.
func (r *NestRegistry) AreaAt(p components.Position) int {
	col := int(math.Floor(p.X / r.size))
	row := int(math.Floor(p.Y / r.size))
	if col < 0 || row < 0 || col >= r.cols || row >= r.rows {
		return -1
	}
	return row*r.cols + col
}

// RequestNest reserves a nest slot in area for owner, founding the nest at pos.
func (r *NestRegistry) RequestNest(area int, owner uint32, pos components.Position) (*components.Nest, error) {
	if area < 0 || area >= len(r.areas) {
		return nil, fmt.Errorf("area %d: %w", area, ErrAreaUnsuitable)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a := &r.areas[area]
	if !a.Suitable {
		return nil, ErrAreaUnsuitable
	}
	if a.Active >= a.Capacity {
		return nil, ErrNoCapacity
	}
	a.Active++
	if a.Active > a.Capacity {
		panic(fmt.Sprintf("systems: nest area %d over capacity (%d > %d)", area, a.Active, a.Capacity))
	}
	r.active++
	r.nextID++
	return &components.Nest{ID: r.nextID, OwnerID: owner, Area: area, Pos: pos}, nil
}

// ReleaseNest closes a nest and frees its slot. Releasing twice is a no-op.
func (r *NestRegistry) ReleaseNest(n *components.Nest) {
	if n == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n.Closed {
		return
	}
	n.Closed = true
	a := &r.areas[n.Area]
	a.Active--
	if a.Active < 0 {
		panic(fmt.Sprintf("systems: nest area %d released below zero", n.Area))
	}
	r.active--
}

// Area returns a copy of an area entry.
func (r *NestRegistry) Area(i int) NestArea {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.areas[i]
}

// Len returns the number of nest areas.
func (r *NestRegistry) Len() int {
	return len(r.areas)
}

// Active returns the number of open nests across all areas.
func (r *NestRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// CheckInvariant verifies every area is within capacity.
func (r *NestRegistry) CheckInvariant() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.areas {
		if a.Active < 0 || a.Active > a.Capacity {
			return fmt.Errorf("nest area %d: active %d outside [0, %d]", i, a.Active, a.Capacity)
		}
	}
	return nil
}
