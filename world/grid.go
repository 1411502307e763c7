package world

import (
	"math"
	"slices"
)

// cellKey uniquely identifies a grid cell
type cellKey struct {
	cx, cy int
}

// gridEntry holds a cube id at its position when inserted
type gridEntry struct {
	uid  int
	x, y float64
}

// Grid is a hash grid over cube positions for fast footprint queries.
type Grid struct {
	cells    map[cellKey][]gridEntry
	cellSize float64
}

// NewGrid creates an empty grid. Non-positive cell sizes fall back to 1.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{
		cells:    make(map[cellKey][]gridEntry),
		cellSize: cellSize,
	}
}

// Clear resets all cells
func (g *Grid) Clear() {
	g.cells = make(map[cellKey][]gridEntry)
}

func (g *Grid) keyFor(x, y float64) cellKey {
	return cellKey{
		cx: int(math.Floor(x / g.cellSize)),
		cy: int(math.Floor(y / g.cellSize)),
	}
}

// Insert adds c at its current position
func (g *Grid) Insert(c *Cube) {
	k := g.keyFor(c.X, c.Y)
	g.cells[k] = append(g.cells[k], gridEntry{uid: c.UID, x: c.X, y: c.Y})
}

// Within returns the ids of every inserted cube whose position r contains,
// in ascending order.
func (g *Grid) Within(r Rect) []int {
	var ids []int
	minCX := int(math.Floor(r.X / g.cellSize))
	maxCX := int(math.Floor(r.Right() / g.cellSize))
	minCY := int(math.Floor(r.Y / g.cellSize))
	maxCY := int(math.Floor(r.Bottom() / g.cellSize))

	for cx := minCX; cx <= maxCX; cx++ {
		for cy := minCY; cy <= maxCY; cy++ {
			for _, e := range g.cells[cellKey{cx, cy}] {
				if r.Contains(Point{X: e.x, Y: e.y}) {
					ids = append(ids, e.uid)
				}
			}
		}
	}
	slices.Sort(ids)
	return ids
}
