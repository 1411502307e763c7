package stats

type kill struct {
	eaterTeam int
	eaterName string
	eatenTeam int
	eatenName string
}

// Tally collects one tick's stat changes so the simulation can record them
// without holding the table lock, then apply them in one step.
type Tally struct {
	food       map[int]int
	peakMass   map[int]float64
	splits     map[int]int
	kills      []kill
	ranks      map[int]int
	latestMass map[int]float64
}

// NewTally creates an empty tally.
func NewTally() *Tally {
	return &Tally{
		food:       make(map[int]int),
		peakMass:   make(map[int]float64),
		splits:     make(map[int]int),
		ranks:      make(map[int]int),
		latestMass: make(map[int]float64),
	}
}

func (t *Tally) empty() bool {
	return len(t.food) == 0 && len(t.peakMass) == 0 && len(t.splits) == 0 &&
		len(t.kills) == 0 && len(t.ranks) == 0 && len(t.latestMass) == 0
}

// FoodEaten credits team with one pellet; massAfter feeds the running maximum.
func (t *Tally) FoodEaten(team int, massAfter float64) {
	t.food[team]++
	if massAfter > t.peakMass[team] {
		t.peakMass[team] = massAfter
	}
}

// Split counts one accepted split request for team.
func (t *Tally) Split(team int) {
	t.splits[team]++
}

// Eaten records a cross-team kill on both sides.
func (t *Tally) Eaten(eaterTeam int, eaterName string, eatenTeam int, eatenName string) {
	t.kills = append(t.kills, kill{
		eaterTeam: eaterTeam,
		eaterName: eaterName,
		eatenTeam: eatenTeam,
		eatenName: eatenName,
	})
}

// Rank records that team held rank this tick; the best rank wins.
func (t *Tally) Rank(team, rank int) {
	if cur, ok := t.ranks[team]; !ok || rank < cur {
		t.ranks[team] = rank
	}
}

// Mass records the latest mass of team's root cube.
func (t *Tally) Mass(team int, mass float64) {
	t.latestMass[team] = mass
}
