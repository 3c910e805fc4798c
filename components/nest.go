package components

// Cell is one brood cell of a nest.
type Cell struct {
	TargetProvision float64
	FemaleTarget    float64 // provision at which the egg becomes female
	Provision       float64
	DaysOpen        int
	IntendedSex     Sex
	Sex             Sex
	Parasitoid      Parasitoid
	OccupantID      uint32
	Closed          bool
}

// Nest is an ordered sequence of cells provisioned by one female.
// Only the owning female mutates a nest; the registry owns its capacity slot.
type Nest struct {
	ID      uint32
	OwnerID uint32
	Area    int
	Pos     Position
	Cells   []Cell
	Closed  bool
}

// OpenCell returns the cell currently being provisioned, or nil.
func (n *Nest) OpenCell() *Cell {
	if len(n.Cells) == 0 {
		return nil
	}
	c := &n.Cells[len(n.Cells)-1]
	if c.Closed {
		return nil
	}
	return c
}

// StartCell appends a new open cell. It panics if a cell is already open.
func (n *Nest) StartCell(target, femaleTarget float64, intended Sex) *Cell {
	if n.OpenCell() != nil {
		panic("components: nest already has an open cell")
	}
	n.Cells = append(n.Cells, Cell{TargetProvision: target, FemaleTarget: femaleTarget, IntendedSex: intended})
	return &n.Cells[len(n.Cells)-1]
}

// ClosedCells returns the number of completed cells.
func (n *Nest) ClosedCells() int {
	count := 0
	for i := range n.Cells {
		if n.Cells[i].Closed {
			count++
		}
	}
	return count
}
