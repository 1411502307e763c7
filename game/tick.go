package game

import (
	"log"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"agcubio-server/protocol"
	"agcubio-server/stats"
	"agcubio-server/world"
)

// foodCellSize is the food grid's cell edge in world units.
const foodCellSize = 32

// rankedPlaces is how many players receive a rank each tick.
const rankedPlaces = 5

// beat collects everything one tick changes.
type beat struct {
	now time.Time
	// scale is the tick's length over the nominal heartbeat.
	scale float64

	players map[int]*world.Cube
	food    map[int]*world.Cube
	tally   *stats.Tally

	invalid []int // players that sent a bad request
	dead    []int // teams eaten down to nothing
}

func (b *beat) touch(c *world.Cube) {
	b.players[c.UID] = c
}

func (srv *Server) newBeat(elapsed time.Duration) *beat {
	return &beat{
		now:     srv.now(),
		scale:   float64(elapsed) / float64(srv.opts.Heartbeat),
		players: make(map[int]*world.Cube),
		food:    make(map[int]*world.Cube),
		tally:   stats.NewTally(),
	}
}

// tick runs one simulation step over elapsed time.
func (srv *Server) tick(elapsed time.Duration) {
	b := srv.newBeat(elapsed)
	requests := srv.queue.Drain()
	targets := srv.conns.Snapshot()

	srv.worldMu.Lock()
	srv.processRequests(b, requests)
	srv.addFood(b)
	srv.addViruses(b)
	srv.moveAll(b)
	srv.atrophy(b)
	footprints := srv.footprints()
	srv.eatFood(b, footprints)
	srv.eatPlayers(b, footprints)
	srv.encounterViruses(b, footprints)
	srv.rank(b)
	failed := sendAll(targets, srv.encodeChanges(b))
	srv.syncMass(b)
	srv.worldMu.Unlock()

	srv.stats.Apply(b.tally)

	for _, id := range b.invalid {
		srv.disconnectID(id)
	}
	for _, id := range b.dead {
		srv.disconnectID(id)
	}
	for _, s := range failed {
		srv.Disconnect(s)
	}
}

func (srv *Server) team(id int) []*world.Cube {
	ids := srv.world.GetTeam(id)
	team := make([]*world.Cube, 0, len(ids))
	for _, uid := range ids {
		if c, ok := srv.world.Get(uid); ok {
			team = append(team, c)
		}
	}
	return team
}

func (srv *Server) processRequests(b *beat, requests []Request) {
	for _, req := range requests {
		if req.Leave {
			for _, c := range srv.team(req.PlayerID) {
				c.Mass = 0
				srv.world.Remove(c.UID)
				b.touch(c)
			}
			continue
		}

		cmd, err := protocol.ParseCommand(req.Message)
		if err != nil {
			log.Printf("player %d: %v", req.PlayerID, err)
			b.invalid = append(b.invalid, req.PlayerID)
			continue
		}

		team := srv.team(req.PlayerID)
		for _, c := range team {
			c.Destination = cmd.Target
			b.touch(c)
		}
		if cmd.Verb != protocol.VerbSplit || len(team) == 0 || len(team) >= srv.opts.MaxSplits {
			continue
		}
		b.tally.Split(req.PlayerID)
		for _, c := range team {
			if c.Mass >= srv.opts.MinimumSplitMass {
				srv.splitCube(b, c, cmd.Target)
			}
		}
	}
}

// spawnCount solves the population's differential for one tick:
// floor((1 - have/limit) * scale * perBeat).
func spawnCount(have, limit, perBeat int, scale float64) int {
	if limit <= 0 || perBeat <= 0 {
		return 0
	}
	n := math.Floor((1 - float64(have)/float64(limit)) * scale * float64(perBeat))
	if n <= 0 || math.IsNaN(n) {
		return 0
	}
	return int(n)
}

func (srv *Server) randomPoint() world.Point {
	r := srv.world.Bounds()
	return world.Point{X: r.X + srv.rng.Float64()*r.W, Y: r.Y + srv.rng.Float64()*r.H}
}

func (srv *Server) addFood(b *beat) {
	n := spawnCount(srv.world.FoodCount(), srv.opts.MaxFoodCount, srv.opts.NewFoodPerBeat, b.scale)
	for range n {
		f := world.NewFood(srv.nextID(), srv.randomPoint(), randomColor(srv.rng))
		srv.world.Add(f)
		b.food[f.UID] = f
	}
}

func (srv *Server) addViruses(b *beat) {
	n := spawnCount(len(srv.viruses), srv.opts.MaxVirusCount, srv.opts.NewVirusPerBeat, b.scale)
	for range n {
		v := world.NewVirus(srv.nextID(), srv.randomPoint(), virusColor, srv.opts.PlayerStartMass)
		srv.world.Add(v)
		srv.viruses[v.UID] = v
		b.touch(v)
	}
}

// livePlayers returns every non-virus player, ordered by uid.
func (srv *Server) livePlayers() []*world.Cube {
	ids := srv.world.GetAllPlayers()
	out := make([]*world.Cube, 0, len(ids))
	for _, id := range ids {
		if c, _ := srv.world.Get(id); c != nil && !c.IsVirus {
			out = append(out, c)
		}
	}
	return out
}

// atrophy shrinks everything in the player collection, viruses included.
func (srv *Server) atrophy(b *beat) {
	floor := srv.opts.PlayerMinimumAtrophy
	for _, id := range srv.world.GetAllPlayers() {
		p, _ := srv.world.Get(id)
		p.Mass -= srv.opts.PlayerAtrophyRate * (p.Mass - floor)
		b.touch(p)
	}
}

// footprint is one player's square, fixed at the start of consumption.
type footprint struct {
	cube  *world.Cube
	rect  world.Rect
	eaten bool
}

func (srv *Server) footprints() []*footprint {
	players := srv.livePlayers()
	out := make([]*footprint, len(players))
	for i, p := range players {
		out[i] = &footprint{cube: p, rect: p.Footprint()}
	}
	return out
}

func (srv *Server) eatFood(b *beat, fps []*footprint) {
	grid := srv.foodGrid
	grid.Clear()
	for _, id := range srv.world.GetAllFood() {
		f, _ := srv.world.Get(id)
		grid.Insert(f)
	}

	eaters := make(map[int][]*world.Cube)
	for _, fp := range fps {
		for _, fid := range grid.Within(fp.rect) {
			eaters[fid] = append(eaters[fid], fp.cube)
		}
	}

	for _, fid := range slices.Sorted(maps.Keys(eaters)) {
		f, ok := srv.world.Get(fid)
		if !ok {
			continue
		}
		share := f.Mass / float64(len(eaters[fid]))
		f.Mass = 0
		srv.world.Remove(fid)
		// food spawned this tick was never sent; drop it instead
		if _, fresh := b.food[fid]; fresh {
			delete(b.food, fid)
		} else {
			b.food[fid] = f
		}

		for _, p := range eaters[fid] {
			p.Mass += share
			b.touch(p)
			b.tally.FoodEaten(p.TeamID, p.Mass)
		}
	}
}

func (srv *Server) eatPlayers(b *beat, fps []*footprint) {
	noMerge := srv.opts.NoMerge()
	for i := 0; i < len(fps)-1; i++ {
		a := fps[i]
		if a.eaten {
			continue
		}
		for j := i + 1; j < len(fps); j++ {
			o := fps[j]
			if o.eaten || a.eaten {
				continue
			}
			in, ok := a.rect.Intersect(o.rect)
			if !ok || in.Area() == 0 {
				continue
			}
			if in.Area()/a.rect.Area() < srv.opts.PlayerEatenRatio &&
				in.Area()/o.rect.Area() < srv.opts.PlayerEatenRatio {
				continue
			}

			eater, eaten := a, o
			if o.cube.Mass >= a.cube.Mass {
				eater, eaten = o, a
			}

			if a.cube.TeamID != 0 && a.cube.TeamID == o.cube.TeamID {
				if b.now.Sub(a.cube.SplitTime) < noMerge || b.now.Sub(o.cube.SplitTime) < noMerge {
					continue
				}
				if eaten.cube.IsRoot() {
					eater, eaten = eaten, eater
				}
			} else {
				b.tally.Eaten(eater.cube.TeamID, eater.cube.Name, eaten.cube.TeamID, eaten.cube.Name)
			}

			eater.cube.Mass += eaten.cube.Mass
			eaten.cube.Mass = 0
			srv.world.Remove(eaten.cube.UID)
			eaten.eaten = true
			b.touch(eater.cube)
			b.touch(eaten.cube)

			if len(srv.world.GetTeam(eaten.cube.TeamID)) == 0 {
				b.dead = append(b.dead, eaten.cube.TeamID)
			}
		}
	}
}

func (srv *Server) encounterViruses(b *beat, fps []*footprint) {
	for _, vid := range slices.Sorted(maps.Keys(srv.viruses)) {
		v := srv.viruses[vid]
		vr := v.Footprint()
		for _, fp := range fps {
			if fp.eaten || !fp.rect.Overlaps(vr) {
				continue
			}
			if !v.IsConsumed() {
				v.Mass = 0
				srv.world.Remove(vid)
				delete(srv.viruses, vid)
				b.touch(v)
			}
			srv.splitCube(b, fp.cube, fp.cube.Position())
		}
	}
}

// rank hands out places 1-5 in ascending mass order.
func (srv *Server) rank(b *beat) {
	players := srv.livePlayers()
	slices.SortStableFunc(players, func(x, y *world.Cube) int {
		switch {
		case x.Mass < y.Mass:
			return -1
		case x.Mass > y.Mass:
			return 1
		}
		return 0
	})
	for i, p := range players {
		if i >= rankedPlaces {
			break
		}
		b.tally.Rank(p.TeamID, i+1)
	}
}

// encodeChanges renders the changed players, then the changed food.
func (srv *Server) encodeChanges(b *beat) string {
	var sb strings.Builder
	for _, id := range slices.Sorted(maps.Keys(b.players)) {
		sb.WriteString(encodeLine(b.players[id]))
	}
	for _, id := range slices.Sorted(maps.Keys(b.food)) {
		sb.WriteString(encodeLine(b.food[id]))
	}
	return sb.String()
}

func (srv *Server) syncMass(b *beat) {
	for _, c := range b.players {
		if c.IsVirus || !c.IsRoot() {
			continue
		}
		b.tally.Mass(c.TeamID, c.Mass)
	}
}
