// Package stats tracks per-player session aggregates and hands finished
// sessions to a persistence collaborator.
package stats

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
)

// ErrUnknownSession is returned when a team has no open session.
var ErrUnknownSession = errors.New("unknown session")

// PlayStats is one player's performance over a session.
type PlayStats struct {
	PlayerName   string
	StartTime    time.Time
	EndTime      time.Time
	FoodEaten    int
	MaximumMass  float64
	LatestMass   float64
	PlayersEaten []string
	TimesSplit   int
	EatenBy      string
	// BestRank is the best top-5 position reached; 0 means never ranked.
	BestRank int
}

// TimePlayed returns EndTime-StartTime, or zero for an open session.
func (p PlayStats) TimePlayed() time.Duration {
	if p.EndTime.IsZero() {
		return 0
	}
	return p.EndTime.Sub(p.StartTime)
}

// Session is a finished PlayStats ready to persist.
type Session struct {
	ID       uuid.UUID
	PlayerID int
	Stats    PlayStats
}

// EatenCounts tallies PlayersEaten by name.
func (s Session) EatenCounts() map[string]int {
	counts := make(map[string]int, len(s.Stats.PlayersEaten))
	for _, name := range s.Stats.PlayersEaten {
		counts[name]++
	}
	return counts
}

// Table holds the open sessions keyed by team id.
type Table struct {
	mu     deadlock.Mutex
	byTeam map[int]*PlayStats
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{byTeam: make(map[int]*PlayStats)}
}

// Begin opens a session for team. An existing session is replaced.
func (t *Table) Begin(team int, name string, mass float64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byTeam[team] = &PlayStats{
		PlayerName:  name,
		StartTime:   now,
		LatestMass:  mass,
		MaximumMass: mass,
	}
}

// Get returns a copy of team's open session.
func (t *Table) Get(team int) (PlayStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ps, ok := t.byTeam[team]
	if !ok {
		return PlayStats{}, false
	}
	cp := *ps
	cp.PlayersEaten = append([]string(nil), ps.PlayersEaten...)
	return cp, true
}

// Len returns the number of open sessions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byTeam)
}

// Finish closes team's session and returns it.
func (t *Table) Finish(team int, now time.Time) (PlayStats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ps, ok := t.byTeam[team]
	if !ok {
		return PlayStats{}, ErrUnknownSession
	}
	delete(t.byTeam, team)
	ps.EndTime = now
	return *ps, nil
}

// Apply folds one tick's tally into the open sessions. Teams without a
// session are ignored.
func (t *Table) Apply(tl *Tally) {
	if tl.empty() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for team, n := range tl.splits {
		if ps, ok := t.byTeam[team]; ok {
			ps.TimesSplit += n
		}
	}
	for team, n := range tl.food {
		if ps, ok := t.byTeam[team]; ok {
			ps.FoodEaten += n
		}
	}
	for team, m := range tl.peakMass {
		if ps, ok := t.byTeam[team]; ok && m > ps.MaximumMass {
			ps.MaximumMass = m
		}
	}
	for _, k := range tl.kills {
		if ps, ok := t.byTeam[k.eaterTeam]; ok {
			ps.PlayersEaten = append(ps.PlayersEaten, k.eatenName)
		}
		if ps, ok := t.byTeam[k.eatenTeam]; ok {
			ps.EatenBy = k.eaterName
		}
	}
	for team, rank := range tl.ranks {
		if ps, ok := t.byTeam[team]; ok && (ps.BestRank == 0 || rank < ps.BestRank) {
			ps.BestRank = rank
		}
	}
	for team, m := range tl.latestMass {
		if ps, ok := t.byTeam[team]; ok {
			ps.LatestMass = m
			if m > ps.MaximumMass {
				ps.MaximumMass = m
			}
		}
	}
}
