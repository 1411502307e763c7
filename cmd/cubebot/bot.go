package main

import (
	"math"
	"math/rand"

	"agcubio-server/world"
)

const (
	// edgeBuffer is how close to the world edge a bot turns back.
	edgeBuffer = 40
	// fleeRadius is the distance at which a bigger foreign cube is a threat.
	fleeRadius = 150
	// chaseRadius is the distance at which a smaller foreign cube is prey.
	chaseRadius = 120
	// virusRadius is how close a bot lets a virus come before steering off.
	virusRadius = 60
	// seekRadius bounds the food search around the team's centre.
	seekRadius = 200
	// seekGiveUp is how many decisions a bot chases food without eating.
	seekGiveUp = 60
	// foodCell is the food grid's cell edge.
	foodCell = 32
	// lunge is the mass ratio over prey at which a bot splits to catch it.
	lunge = 2.5
)

// botNames is the pool bots draw their names from.
var botNames = []string{
	"Ares", "Bolt", "Cinder", "Drift", "Ember",
	"Flint", "Gale", "Hex", "Iris", "Jolt",
	"Kite", "Lumen", "Mote", "Nova", "Onyx",
}

// Bot holds one bot's steering state.
type Bot struct {
	rng *rand.Rand

	target      world.Point
	wanderTicks int // decisions left before a new wander target
	seekTicks   int // decisions spent chasing food without eating
	lastMass    float64
	minSplit    float64
}

// NewBot creates a bot. minSplit is the smallest mass the server splits.
func NewBot(rng *rand.Rand, minSplit float64) *Bot {
	return &Bot{rng: rng, minSplit: minSplit}
}

// Decision is what a bot sends next.
type Decision struct {
	Target world.Point
	Split  bool
}

// view is the bot's own team summarised.
type view struct {
	centre world.Point
	mass   float64 // mass of the largest cube
	team   int
}

func summarize(w *world.World, self int) (view, bool) {
	ids := w.GetTeam(self)
	if len(ids) == 0 {
		return view{}, false
	}
	var sx, sy float64
	v := view{team: self}
	for _, id := range ids {
		c, _ := w.Get(id)
		sx += c.X
		sy += c.Y
		v.mass = max(v.mass, c.Mass)
	}
	v.centre = world.Point{X: sx / float64(len(ids)), Y: sy / float64(len(ids))}
	return v, true
}

// Decide picks the next target by priority: stay off the edge, flee,
// avoid viruses, chase, seek food, wander. It reports false when the bot
// has no cubes left.
func (b *Bot) Decide(w *world.World, self int) (Decision, bool) {
	me, ok := summarize(w, self)
	if !ok {
		return Decision{}, false
	}
	here := me.centre
	bounds := w.Bounds()

	inner := world.Rect{
		X: bounds.X + edgeBuffer,
		Y: bounds.Y + edgeBuffer,
		W: bounds.W - 2*edgeBuffer,
		H: bounds.H - 2*edgeBuffer,
	}
	if inner.W > 0 && inner.H > 0 && !inner.Contains(here) {
		b.wanderTicks = 0
		return Decision{Target: bounds.Center()}, true
	}

	var prey *world.Cube
	preyDist := math.MaxFloat64
	for _, id := range w.GetAllPlayers() {
		c, _ := w.Get(id)
		if c.TeamID == me.team {
			continue
		}
		d := here.DistanceTo(c.Position())
		switch {
		case c.TeamID == 0:
			if d < virusRadius {
				return Decision{Target: b.away(here, c.Position(), bounds)}, true
			}
		case c.Mass > me.mass && d < fleeRadius:
			b.wanderTicks = 0
			return Decision{Target: b.away(here, c.Position(), bounds)}, true
		case c.Mass < me.mass && d < chaseRadius && d < preyDist:
			prey, preyDist = c, d
		}
	}
	if prey != nil {
		split := me.mass >= lunge*prey.Mass && me.mass/2 >= b.minSplit && me.mass/2 > prey.Mass
		return Decision{Target: prey.Position(), Split: split}, true
	}

	if me.mass > b.lastMass {
		b.seekTicks = 0
	}
	b.lastMass = me.mass

	if b.seekTicks < seekGiveUp {
		if f, ok := nearestFood(w, here); ok {
			b.seekTicks++
			return Decision{Target: f}, true
		}
	} else {
		b.seekTicks = 0
		b.wanderTicks = 0
	}

	if b.wanderTicks <= 0 || here.DistanceTo(b.target) < 1 {
		b.target = b.wanderPoint(bounds)
		b.wanderTicks = 20 + b.rng.Intn(30)
	}
	b.wanderTicks--
	return Decision{Target: b.target}, true
}

// away returns a point on the far side of here from threat, kept inside r.
func (b *Bot) away(here, threat world.Point, r world.Rect) world.Point {
	dir := here.Sub(threat)
	if dir.IsZero() {
		dir = world.Vector{X: b.rng.Float64() - 0.5, Y: b.rng.Float64() - 0.5}
	}
	p := here.Add(dir.Normalize().Scale(fleeRadius))
	p.X = math.Min(math.Max(p.X, r.X), r.Right())
	p.Y = math.Min(math.Max(p.Y, r.Y), r.Bottom())
	return p
}

// wanderPoint mostly picks a point in the middle of the field, where food
// collects, and sometimes anywhere.
func (b *Bot) wanderPoint(r world.Rect) world.Point {
	if b.rng.Float64() < 0.8 {
		return world.Point{
			X: r.X + r.W*(0.15+0.7*b.rng.Float64()),
			Y: r.Y + r.H*(0.15+0.7*b.rng.Float64()),
		}
	}
	return world.Point{X: r.X + r.W*b.rng.Float64(), Y: r.Y + r.H*b.rng.Float64()}
}

func nearestFood(w *world.World, here world.Point) (world.Point, bool) {
	grid := world.NewGrid(foodCell)
	for _, id := range w.GetAllFood() {
		f, _ := w.Get(id)
		grid.Insert(f)
	}
	area := world.Rect{X: here.X - seekRadius, Y: here.Y - seekRadius, W: 2 * seekRadius, H: 2 * seekRadius}

	best := math.MaxFloat64
	var at world.Point
	found := false
	for _, id := range grid.Within(area) {
		f, _ := w.Get(id)
		if d := here.DistanceTo(f.Position()); d < best {
			best, at, found = d, f.Position(), true
		}
	}
	return at, found
}
