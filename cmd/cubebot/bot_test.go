package main

import (
	"math/rand"
	"testing"

	"agcubio-server/world"
)

func testWorld(self *world.Cube, others ...*world.Cube) *world.World {
	w := world.New(1000, 1000)
	w.Add(self)
	for _, c := range others {
		w.Add(c)
	}
	return w
}

func newTestBot() *Bot {
	return NewBot(rand.New(rand.NewSource(7)), 100)
}

func TestDecideNoTeam(t *testing.T) {
	w := world.New(1000, 1000)
	if _, alive := newTestBot().Decide(w, 5); alive {
		t.Fatalf("bot without cubes reported alive")
	}
}

func TestDecideLeavesEdge(t *testing.T) {
	me := world.NewPlayer(1, "me", world.Point{X: 5, Y: 500}, 0, 500)
	d, _ := newTestBot().Decide(testWorld(me), 1)
	if d.Target != (world.Point{X: 500, Y: 500}) {
		t.Fatalf("target %v, want centre", d.Target)
	}
}

func TestDecideFleesBiggerPlayer(t *testing.T) {
	me := world.NewPlayer(1, "me", world.Point{X: 500, Y: 500}, 0, 500)
	big := world.NewPlayer(2, "big", world.Point{X: 550, Y: 500}, 0, 2000)
	food := world.NewFood(3, world.Point{X: 560, Y: 500}, 0)

	d, _ := newTestBot().Decide(testWorld(me, big, food), 1)
	if d.Target.X >= 500 {
		t.Fatalf("target %v does not run from the threat", d.Target)
	}
	if d.Split {
		t.Fatalf("fleeing bot split")
	}
}

func TestDecideAvoidsVirus(t *testing.T) {
	me := world.NewPlayer(1, "me", world.Point{X: 500, Y: 500}, 0, 500)
	v := world.NewVirus(2, world.Point{X: 500, Y: 530}, 0, 500)

	d, _ := newTestBot().Decide(testWorld(me, v), 1)
	if d.Target.Y >= 500 {
		t.Fatalf("target %v heads into the virus", d.Target)
	}
}

func TestDecideChasesAndLunges(t *testing.T) {
	me := world.NewPlayer(1, "me", world.Point{X: 500, Y: 500}, 0, 1000)
	small := world.NewPlayer(2, "small", world.Point{X: 580, Y: 500}, 0, 300)
	tiny := world.NewPlayer(3, "tiny", world.Point{X: 450, Y: 500}, 0, 150)

	d, _ := newTestBot().Decide(testWorld(me, small, tiny), 1)
	if d.Target != tiny.Position() {
		t.Fatalf("target %v, want nearest prey %v", d.Target, tiny.Position())
	}
	if !d.Split {
		t.Fatalf("bot did not lunge at much smaller prey")
	}

	small.Mass = 450
	d, _ = newTestBot().Decide(testWorld(me, small), 1)
	if d.Target != small.Position() || d.Split {
		t.Fatalf("decision %+v against prey of mass %v", d, small.Mass)
	}
}

func TestDecideIgnoresTeammates(t *testing.T) {
	me := world.NewPlayer(1, "me", world.Point{X: 500, Y: 500}, 0, 300)
	mate := &world.Cube{UID: 2, TeamID: 1, X: 520, Y: 500, Mass: 2000}
	food := world.NewFood(3, world.Point{X: 400, Y: 400}, 0)

	d, _ := newTestBot().Decide(testWorld(me, mate, food), 1)
	if d.Target != food.Position() {
		t.Fatalf("target %v, want food %v", d.Target, food.Position())
	}
}

func TestDecideSeeksNearestFood(t *testing.T) {
	me := world.NewPlayer(1, "me", world.Point{X: 500, Y: 500}, 0, 500)
	near := world.NewFood(2, world.Point{X: 520, Y: 510}, 0)
	far := world.NewFood(3, world.Point{X: 650, Y: 500}, 0)
	outOfRange := world.NewFood(4, world.Point{X: 900, Y: 900}, 0)

	d, _ := newTestBot().Decide(testWorld(me, far, near, outOfRange), 1)
	if d.Target != near.Position() {
		t.Fatalf("target %v, want %v", d.Target, near.Position())
	}
}

func TestDecideGivesUpOnUnreachableFood(t *testing.T) {
	me := world.NewPlayer(1, "me", world.Point{X: 500, Y: 500}, 0, 500)
	food := world.NewFood(2, world.Point{X: 520, Y: 500}, 0)
	w := testWorld(me, food)
	bot := newTestBot()

	for i := range seekGiveUp {
		if d, _ := bot.Decide(w, 1); d.Target != food.Position() {
			t.Fatalf("decision %d: target %v, want food", i, d.Target)
		}
	}
	if d, _ := bot.Decide(w, 1); d.Target == food.Position() {
		t.Fatalf("bot kept circling the same food")
	}
}

func TestWanderStaysInBounds(t *testing.T) {
	bot := newTestBot()
	r := world.Rect{W: 1000, H: 800}
	for range 200 {
		if p := bot.wanderPoint(r); !r.Contains(p) {
			t.Fatalf("wander point %v outside %v", p, r)
		}
	}
}
