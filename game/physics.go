package game

import "agcubio-server/world"

// arrived is how close to its destination a cube stops moving.
const arrived = 0.5

// splitCube halves c and places the new half beside it. Both halves are
// pushed apart perpendicular to c's heading by half of c's old size. The
// new cube steers toward dest.
func (srv *Server) splitCube(b *beat, c *world.Cube, dest world.Point) *world.Cube {
	size := c.Size()
	c.Mass /= 2

	child := &world.Cube{
		UID:         srv.nextID(),
		TeamID:      c.TeamID,
		X:           c.X,
		Y:           c.Y,
		Destination: dest,
		Mass:        c.Mass,
		Color:       c.Color,
		Name:        c.Name,
	}
	c.SplitTime = b.now
	child.SplitTime = b.now

	heading := c.Destination.Sub(c.Position())
	if heading.IsZero() {
		heading = srv.world.Bounds().Center().Sub(c.Position())
	}
	if heading.IsZero() {
		heading = world.Vector{X: 1, Y: 0}
	}
	push := heading.Perp().Normalize().Scale(size / 2)
	c.MoveTo(c.Position().Add(push))
	child.MoveTo(child.Position().Add(push.Neg()))

	srv.world.Add(child)
	b.touch(c)
	b.touch(child)
	return child
}

// moveAll steps every player toward its destination. A step that would
// leave the world ends the whole pass for this tick, leaving the remaining
// players where they are.
func (srv *Server) moveAll(b *beat) {
	for _, p := range srv.livePlayers() {
		toDest := p.Destination.Sub(p.Position())
		if toDest.Len() < arrived {
			continue
		}
		step := toDest.Normalize().
			Scale(srv.opts.PlayerStartMass / p.Mass).
			Scale(srv.opts.PlayerSpeed).
			Scale(b.scale)
		if step.Len() > toDest.Len() {
			step = toDest
		}
		step = step.Add(srv.repulsor(b, p))

		next := p.Position().Add(step)
		if !srv.world.ContainsPoint(next) {
			return
		}
		p.MoveTo(next)
		b.touch(p)
	}
}

// repulsor pushes p away from the average position of its teammates. The
// push fades linearly to nothing once p is old enough to merge.
func (srv *Server) repulsor(b *beat, p *world.Cube) world.Vector {
	var sum world.Vector
	n := 0
	for _, uid := range srv.world.GetTeam(p.TeamID) {
		if uid == p.UID {
			continue
		}
		other, _ := srv.world.Get(uid)
		sum = sum.Add(world.Vector{X: other.X, Y: other.Y})
		n++
	}
	if n == 0 {
		return world.Vector{}
	}

	locus := world.Point{X: sum.X / float64(n), Y: sum.Y / float64(n)}
	gravity := locus.Sub(p.Position())
	width := p.Footprint().W
	ratio := gravity.Len() / (width / 2)

	if ratio < 1 {
		if gravity.IsZero() {
			gravity = srv.world.Bounds().Center().Sub(p.Position())
		}
		if gravity.IsZero() {
			gravity = world.Vector{X: 1, Y: 0}
		}
		gravity = gravity.Normalize().Scale(width)
	} else {
		gravity = gravity.Scale(1 / (ratio * ratio))
	}

	decay := 1 - b.now.Sub(p.SplitTime).Seconds()/srv.opts.NoMergeSeconds
	if decay < 0 {
		decay = 0
	}
	return gravity.Scale(decay * srv.opts.TeamRepulsionStrength).Neg()
}
