package world

import (
	"math"
	"time"
)

// Cube is any simulated entity on the field: a player cell, a food pellet
// or a virus.
type Cube struct {
	UID         int
	TeamID      int
	X           float64
	Y           float64
	Destination Point
	Mass        float64
	Color       int32 // packed ARGB
	Name        string
	IsFood      bool
	IsVirus     bool
	SplitTime   time.Time
}

// NewPlayer creates a player cube that roots its own team.
func NewPlayer(uid int, name string, at Point, color int32, mass float64) *Cube {
	return &Cube{
		UID:         uid,
		TeamID:      uid,
		X:           at.X,
		Y:           at.Y,
		Destination: at,
		Mass:        mass,
		Color:       color,
		Name:        name,
	}
}

// NewFood creates a food pellet of mass 1.
func NewFood(uid int, at Point, color int32) *Cube {
	return &Cube{
		UID:         uid,
		X:           at.X,
		Y:           at.Y,
		Destination: at,
		Mass:        1,
		Color:       color,
		IsFood:      true,
	}
}

// NewVirus creates a stationary virus. Its destination is its spawn point
// so the movement pass never displaces it.
func NewVirus(uid int, at Point, color int32, mass float64) *Cube {
	return &Cube{
		UID:         uid,
		X:           at.X,
		Y:           at.Y,
		Destination: at,
		Mass:        mass,
		Color:       color,
		Name:        "virus",
		IsVirus:     true,
	}
}

// Position returns the cube's centre.
func (c *Cube) Position() Point {
	return Point{X: c.X, Y: c.Y}
}

// MoveTo sets the cube's centre.
func (c *Cube) MoveTo(p Point) {
	c.X = p.X
	c.Y = p.Y
}

// Size is the side length of the cube, sqrt(mass).
func (c *Cube) Size() float64 {
	return math.Sqrt(c.Mass)
}

// Footprint is the square of side Size centred on the cube's position.
func (c *Cube) Footprint() Rect {
	sz := c.Size()
	return Rect{X: c.X - sz/2, Y: c.Y - sz/2, W: sz, H: sz}
}

// IsRoot reports whether this cube's uid is its team id.
func (c *Cube) IsRoot() bool {
	return c.UID == c.TeamID
}

// IsConsumed reports whether the cube has been eaten.
func (c *Cube) IsConsumed() bool {
	return c.Mass <= 0
}
