package components

import "math"

// Position represents an entity's location in landscape metres.
type Position struct {
	X, Y float64
}

// Offset returns the position moved by (dx, dy).
func (p Position) Offset(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Dist returns the Euclidean distance between two positions.
func (p Position) Dist(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Clamp keeps the position inside a width x height landscape.
func (p Position) Clamp(width, height float64) Position {
	return Position{
		X: math.Min(math.Max(p.X, 0), math.Nextafter(width, 0)),
		Y: math.Min(math.Max(p.Y, 0), math.Nextafter(height, 0)),
	}
}

// Inside reports whether the position lies within a width x height landscape.
func (p Position) Inside(width, height float64) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < width && p.Y < height
}
