package world

import (
	"maps"
	"math"
	"slices"
)

// NoPlayer is returned by GetNearestPlayer when no player qualifies.
const NoPlayer = -1

// World is the id-indexed registry of every cube on the field. Players
// (viruses included) and food live in disjoint collections.
//
// World does no locking of its own; the owner guards it.
type World struct {
	players map[int]*Cube
	food    map[int]*Cube
	bounds  Rect
}

// New creates a world whose bounds span (0,0)-(width,height).
func New(width, height float64) *World {
	w := &World{
		players: make(map[int]*Cube),
		food:    make(map[int]*Cube),
	}
	w.Expand(Point{X: width, Y: height})
	return w
}

// PlayerCount returns the size of the player collection, viruses included.
func (w *World) PlayerCount() int { return len(w.players) }

// FoodCount returns the number of food pellets.
func (w *World) FoodCount() int { return len(w.food) }

// Width returns the current width of the bounds.
func (w *World) Width() float64 { return w.bounds.W }

// Height returns the current height of the bounds.
func (w *World) Height() float64 { return w.bounds.H }

// Bounds returns the bounding rectangle.
func (w *World) Bounds() Rect { return w.bounds }

// Expand grows the bounds to include p. It reports whether the bounds changed.
func (w *World) Expand(p Point) bool {
	if w.bounds.Contains(p) {
		return false
	}
	w.bounds = w.bounds.Union(p)
	return true
}

// ContainsPoint reports whether p is inside the bounds.
func (w *World) ContainsPoint(p Point) bool {
	return w.bounds.Contains(p)
}

// Add inserts c into the food or player collection depending on c.IsFood.
// It fails if that collection already holds c.UID.
func (w *World) Add(c *Cube) bool {
	target := w.players
	if c.IsFood {
		target = w.food
	}
	if _, exists := target[c.UID]; exists {
		return false
	}
	target[c.UID] = c
	return true
}

// Remove deletes the cube with the given id from whichever collection holds it.
func (w *World) Remove(uid int) bool {
	if _, ok := w.food[uid]; ok {
		delete(w.food, uid)
		return true
	}
	if _, ok := w.players[uid]; ok {
		delete(w.players, uid)
		return true
	}
	return false
}

// Get looks the id up in food first, then players.
func (w *World) Get(uid int) (*Cube, bool) {
	if c, ok := w.food[uid]; ok {
		return c, true
	}
	c, ok := w.players[uid]
	return c, ok
}

// Set overwrites the food entry when uid is a known food id; any other uid
// is written to the player collection, even when c is food. Callers that
// need routing by kind use Add.
func (w *World) Set(uid int, c *Cube) {
	if _, ok := w.food[uid]; ok {
		w.food[uid] = c
		return
	}
	w.players[uid] = c
}

// Contains reports whether either collection holds uid.
func (w *World) Contains(uid int) bool {
	_, food := w.food[uid]
	_, player := w.players[uid]
	return food || player
}

// ContainsName reports whether a player with the given name exists.
func (w *World) ContainsName(name string) bool {
	for _, p := range w.players {
		if p.Name == name {
			return true
		}
	}
	return false
}

// GetAllPlayers returns the ids of the player collection in ascending order.
func (w *World) GetAllPlayers() []int {
	return slices.Sorted(maps.Keys(w.players))
}

// GetAllFood returns the ids of all food in ascending order.
func (w *World) GetAllFood() []int {
	return slices.Sorted(maps.Keys(w.food))
}

// GetTeam returns the ids of every player whose team id is teamID.
func (w *World) GetTeam(teamID int) []int {
	var ids []int
	for id, p := range w.players {
		if p.TeamID == teamID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// GetNearestPlayer returns the id of the player closest to p, skipping
// excludeID. Pass NoPlayer to exclude nobody. Returns NoPlayer when no
// player qualifies.
func (w *World) GetNearestPlayer(p Point, excludeID int) int {
	best := math.MaxFloat64
	nearest := NoPlayer
	for _, id := range w.GetAllPlayers() {
		if id == excludeID {
			continue
		}
		if d := p.DistanceTo(w.players[id].Position()); d < best {
			best = d
			nearest = id
		}
	}
	return nearest
}
