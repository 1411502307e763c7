// Package game runs the authoritative simulation: a fixed-interval loop that
// drains player requests, advances the world and broadcasts what changed.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"

	"agcubio-server/config"
	"agcubio-server/network"
	"agcubio-server/protocol"
	"agcubio-server/stats"
	"agcubio-server/world"
)

// persistTimeout bounds one session save.
const persistTimeout = 10 * time.Second

// Server owns the world and every connection playing in it.
//
// Each aggregate has its own lock and no code path holds two of them at
// once. The simulation loop is the only writer of world, viruses and rng
// outside of player creation.
type Server struct {
	opts config.Options

	worldMu deadlock.RWMutex
	world   *world.World
	viruses map[int]*world.Cube
	rng     *rand.Rand

	// foodGrid is rebuilt every tick; only the loop touches it.
	foodGrid *world.Grid

	nextUID atomic.Int64

	queue RequestQueue
	conns *ConnTable
	stats *stats.Table
	store stats.Store

	now     func() time.Time
	persist sync.WaitGroup
}

// New creates a server over an empty world sized by opts. Finished sessions
// are handed to store; a nil store keeps them in memory.
func New(opts config.Options, store stats.Store) *Server {
	if store == nil {
		store = stats.NewMemoryStore()
	}
	return &Server{
		opts:     opts,
		world:    world.New(float64(opts.Width), float64(opts.Height)),
		viruses:  make(map[int]*world.Cube),
		foodGrid: world.NewGrid(foodCellSize),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		conns:    NewConnTable(),
		stats:    stats.NewTable(),
		store:    store,
		now:      time.Now,
	}
}

// Options returns the options the server was built with.
func (srv *Server) Options() config.Options { return srv.opts }

// Stats returns the open-session table.
func (srv *Server) Stats() *stats.Table { return srv.stats }

// Players returns the number of connected players.
func (srv *Server) Players() int { return srv.conns.Count() }

// Counts returns the food and player-collection sizes.
func (srv *Server) Counts() (food, players int) {
	srv.worldMu.RLock()
	defer srv.worldMu.RUnlock()
	return srv.world.FoodCount(), srv.world.PlayerCount()
}

func (srv *Server) nextID() int {
	return int(srv.nextUID.Add(1))
}

// Run drives the tick loop until ctx is done. A panic inside a tick is a
// simulation fault: the loop stops and the fault is returned.
func (srv *Server) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simulation fault: %v", r)
		}
	}()

	hb := srv.opts.Heartbeat
	log.Printf("game loop started, heartbeat %v", hb)
	last := srv.now()
	timer := time.NewTimer(hb)
	defer timer.Stop()

	for {
		if wait := hb - srv.now().Sub(last); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		current := srv.now()
		elapsed := current.Sub(last)
		if elapsed > 2*hb {
			log.Printf("game loop arrhythmia: heartbeat at %v exceeds allowed %v, %d requests waiting",
				elapsed, hb, srv.queue.Len())
		}
		last = current
		srv.tick(elapsed)
	}
}

// Close disconnects every player and waits for their sessions to persist.
func (srv *Server) Close() {
	for _, s := range srv.conns.Snapshot() {
		srv.Disconnect(s)
	}
	srv.persist.Wait()
}

// Handshake is the accept callback: it waits for the player's name.
func (srv *Server) Handshake(s *network.State) {
	log.Printf("conn %s: contact from %s", s.Session, s.RemoteAddr())
	fr := &protocol.Framer{}
	s.SetCallback(func(s *network.State) { srv.receiveName(s, fr) })
	if err := network.RequestMoreData(s); err != nil {
		log.Printf("conn %s: %v", s.Session, err)
		srv.Disconnect(s)
	}
}

func (srv *Server) receiveName(s *network.State, fr *protocol.Framer) {
	if s.Status() == network.Disconnected {
		srv.Disconnect(s)
		return
	}
	lines, err := fr.Push(s.Drain())
	if err != nil {
		log.Printf("conn %s: name: %v", s.Session, err)
		srv.Disconnect(s)
		return
	}
	if len(lines) == 0 {
		srv.rearm(s)
		return
	}

	name := strings.TrimSpace(lines[0])
	uid := srv.nextID()
	s.SetID(uid)
	srv.stats.Begin(uid, name, srv.opts.PlayerStartMass, srv.now())
	s.SetCallback(func(s *network.State) { srv.receiveRequests(s, fr) })
	srv.conns.Add(uid, s)
	targets := srv.conns.Snapshot()

	srv.worldMu.Lock()
	at := world.Point{
		X: srv.world.Bounds().X + srv.rng.Float64()*srv.world.Width(),
		Y: srv.world.Bounds().Y + srv.rng.Float64()*srv.world.Height(),
	}
	player := world.NewPlayer(uid, name, at, randomColor(srv.rng), srv.opts.PlayerStartMass)
	srv.world.Add(player)
	joined, snapshot := srv.encodeJoin(player)
	failed := sendAll(targets, joined)
	if err := network.Send(s, snapshot, nil); err != nil {
		failed = append(failed, s)
	}
	srv.worldMu.Unlock()

	log.Printf("conn %s: player %d joined as %q", s.Session, uid, name)

	for _, f := range failed {
		srv.Disconnect(f)
	}
	for _, line := range lines[1:] {
		srv.queue.Push(Request{PlayerID: uid, Message: line})
	}
	srv.rearm(s)
}

// encodeJoin renders the new player's record and the full world snapshot,
// players first. Caller holds worldMu.
func (srv *Server) encodeJoin(player *world.Cube) (joined, snapshot string) {
	joined = encodeLine(player)
	var sb strings.Builder
	for _, id := range srv.world.GetAllPlayers() {
		c, _ := srv.world.Get(id)
		sb.WriteString(encodeLine(c))
	}
	for _, id := range srv.world.GetAllFood() {
		c, _ := srv.world.Get(id)
		sb.WriteString(encodeLine(c))
	}
	return joined, sb.String()
}

func (srv *Server) receiveRequests(s *network.State, fr *protocol.Framer) {
	if s.Status() == network.Disconnected {
		srv.Disconnect(s)
		return
	}
	id := s.ID()
	lines, err := fr.Push(s.Drain())
	for _, line := range lines {
		srv.queue.Push(Request{PlayerID: id, Message: line})
	}
	if err != nil {
		log.Printf("player %d: %v", id, err)
		srv.Disconnect(s)
		return
	}
	srv.rearm(s)
}

func (srv *Server) rearm(s *network.State) {
	if err := network.RequestMoreData(s); err != nil {
		if !errors.Is(err, network.ErrDisconnected) {
			log.Printf("conn %s: %v", s.Session, err)
		}
		srv.Disconnect(s)
	}
}

// Disconnect tears s down. The player's session is finalised and persisted
// in the background and the simulation is asked to remove the team. Calling
// it again for the same connection is a no-op.
func (srv *Server) Disconnect(s *network.State) {
	network.Close(s)
	id := s.ID()
	if id < 0 {
		log.Printf("conn %s: closed before naming a player", s.Session)
		return
	}
	if !srv.conns.Remove(id, s) {
		return
	}
	srv.queue.Push(Request{PlayerID: id, Leave: true})

	ps, err := srv.stats.Finish(id, srv.now())
	if err != nil {
		log.Printf("conn %s: player %d: %v", s.Session, id, err)
		return
	}
	log.Printf("conn %s: player %d (%s) disconnected after %v", s.Session, id, ps.PlayerName, ps.TimePlayed().Round(time.Second))

	sess := stats.Session{ID: s.Session, PlayerID: id, Stats: ps}
	srv.persist.Add(1)
	go func() {
		defer srv.persist.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := srv.store.Save(ctx, sess); err != nil {
			log.Printf("save session %s: %v", sess.ID, err)
		}
	}()
}

// disconnectID disconnects whatever connection plays uid.
func (srv *Server) disconnectID(uid int) {
	if s, ok := srv.conns.Get(uid); ok {
		srv.Disconnect(s)
	}
}

func sendAll(targets []*network.State, text string) (failed []*network.State) {
	if text == "" {
		return nil
	}
	for _, s := range targets {
		if s.Status() == network.Disconnected {
			continue
		}
		if err := network.Send(s, text, nil); err != nil {
			log.Printf("conn %s: broadcast: %v", s.Session, err)
			failed = append(failed, s)
		}
	}
	return failed
}

func encodeLine(c *world.Cube) string {
	line, err := protocol.EncodeCube(c)
	if err != nil {
		// only NaN or Inf coordinates fail to encode
		panic(err)
	}
	return line
}

func argb(a, r, g, b uint8) int32 {
	return int32(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// randomColor avoids pure green, which marks viruses.
func randomColor(rng *rand.Rand) int32 {
	return argb(0xFF,
		uint8(64+rng.Float64()*128),
		uint8(rng.Float64()*180),
		uint8(64+rng.Float64()*128))
}

var virusColor = argb(0xFF, 0xAD, 0xFF, 0x2F)
