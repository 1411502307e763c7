package world

import "math"

// Point is a position on the playing field.
type Point struct {
	X float64
	Y float64
}

// Add returns p displaced by v.
func (p Point) Add(v Vector) Point {
	return Point{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Vector {
	return Vector{X: p.X - q.X, Y: p.Y - q.Y}
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return p.Sub(q).Len()
}

// Vector is a displacement in world units.
type Vector struct {
	X float64
	Y float64
}

// Len returns the Euclidean length of v.
func (v Vector) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// IsZero reports whether both components are exactly zero.
func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Normalize returns the unit vector in the direction of v.
// The zero vector normalizes to itself.
func (v Vector) Normalize() Vector {
	l := v.Len()
	if l == 0 {
		return v
	}
	return Vector{X: v.X / l, Y: v.Y / l}
}

// Scale returns v multiplied by k.
func (v Vector) Scale(k float64) Vector {
	return Vector{X: v.X * k, Y: v.Y * k}
}

// Add returns the sum of v and w.
func (v Vector) Add(w Vector) Vector {
	return Vector{X: v.X + w.X, Y: v.Y + w.Y}
}

// Neg returns v pointing the other way.
func (v Vector) Neg() Vector {
	return Vector{X: -v.X, Y: -v.Y}
}

// Perp returns v rotated by 90 degrees.
func (v Vector) Perp() Vector {
	return Vector{X: -v.Y, Y: v.X}
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
// A rect with zero width or height is a degenerate rect that still
// contains the points on it.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Right returns the maximum x coordinate of r.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the maximum y coordinate of r.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Area returns W*H.
func (r Rect) Area() float64 { return r.W * r.H }

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Union returns the smallest rect containing both r and p.
func (r Rect) Union(p Point) Rect {
	left := math.Min(r.X, p.X)
	top := math.Min(r.Y, p.Y)
	right := math.Max(r.Right(), p.X)
	bottom := math.Max(r.Bottom(), p.Y)
	return Rect{X: left, Y: top, W: right - left, H: bottom - top}
}

// Intersect returns the overlapping region of r and o. The boolean is
// false when the rects do not touch at all.
func (r Rect) Intersect(o Rect) (Rect, bool) {
	left := math.Max(r.X, o.X)
	top := math.Max(r.Y, o.Y)
	right := math.Min(r.Right(), o.Right())
	bottom := math.Min(r.Bottom(), o.Bottom())
	if right < left || bottom < top {
		return Rect{}, false
	}
	return Rect{X: left, Y: top, W: right - left, H: bottom - top}, true
}

// Overlaps reports whether r and o share a region of positive area.
func (r Rect) Overlaps(o Rect) bool {
	in, ok := r.Intersect(o)
	return ok && in.Area() > 0
}
