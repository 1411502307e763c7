// Package client is a headless game client. It mirrors the server's world
// from the record stream and sends move and split commands.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/sasha-s/go-deadlock"

	"agcubio-server/network"
	"agcubio-server/protocol"
	"agcubio-server/world"
)

// ErrClosed is returned once the connection has gone away.
var ErrClosed = errors.New("client connection closed")

// Client is one connected player.
type Client struct {
	name  string
	state *network.State
	fr    protocol.Framer

	mu    deadlock.RWMutex
	world *world.World
	self  int

	dialed   chan struct{}
	joined   chan struct{}
	done     chan struct{}
	dialOnce sync.Once
	joinOnce sync.Once
	doneOnce sync.Once
}

// Dial connects to hostPort, sends name and waits until the server has
// answered with the player's own record.
func Dial(ctx context.Context, hostPort, name string) (*Client, error) {
	c := &Client{
		name:   name,
		world:  world.New(0, 0),
		self:   world.NoPlayer,
		dialed: make(chan struct{}),
		joined: make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.state = network.Connect(ctx, c.onEvent, hostPort)

	select {
	case <-c.dialed:
	case <-c.done:
		return nil, fmt.Errorf("dial %s: %w", hostPort, ErrClosed)
	case <-ctx.Done():
		network.Close(c.state)
		return nil, ctx.Err()
	}

	if err := network.Send(c.state, name+"\n", nil); err != nil {
		network.Close(c.state)
		return nil, fmt.Errorf("send name: %w", err)
	}

	select {
	case <-c.joined:
		return c, nil
	case <-c.done:
		return nil, fmt.Errorf("join %s: %w", hostPort, ErrClosed)
	case <-ctx.Done():
		network.Close(c.state)
		return nil, ctx.Err()
	}
}

func (c *Client) onEvent(s *network.State) {
	switch s.Status() {
	case network.Connected:
		c.dialOnce.Do(func() { close(c.dialed) })
	case network.Disconnected:
		c.doneOnce.Do(func() { close(c.done) })
	case network.HasData:
		c.apply(protocol.DecodeCubes(&c.fr, s.Drain()))
		if err := network.RequestMoreData(s); err != nil {
			log.Printf("client %s: %v", c.name, err)
			network.Close(s)
			c.doneOnce.Do(func() { close(c.done) })
		}
	}
}

func (c *Client) apply(cubes []*world.Cube) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cube := range cubes {
		c.world.Remove(cube.UID)
		if cube.IsConsumed() {
			continue
		}
		c.world.Add(cube)
		c.world.Expand(cube.Position())
		if c.self == world.NoPlayer && !cube.IsFood && cube.Name == c.name {
			c.self = cube.UID
			c.joinOnce.Do(func() { close(c.joined) })
		}
	}
}

// ID returns the uid of the player's root cube.
func (c *Client) ID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// Name returns the name the client joined with.
func (c *Client) Name() string { return c.name }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// View runs fn with read access to the mirrored world.
func (c *Client) View(fn func(w *world.World, self int)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.world, c.self)
}

// Team returns copies of the player's own cubes.
func (c *Client) Team() []world.Cube {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var team []world.Cube
	for _, id := range c.world.GetTeam(c.self) {
		if cube, ok := c.world.Get(id); ok {
			team = append(team, *cube)
		}
	}
	return team
}

// Move steers the player's team toward (x, y).
func (c *Client) Move(x, y int) error {
	return c.send(protocol.VerbMove, x, y)
}

// Split steers toward (x, y) and splits every cube big enough.
func (c *Client) Split(x, y int) error {
	return c.send(protocol.VerbSplit, x, y)
}

func (c *Client) send(v protocol.Verb, x, y int) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	return network.Send(c.state, protocol.FormatCommand(v, x, y), nil)
}

// Close hangs up.
func (c *Client) Close() {
	network.Close(c.state)
}
