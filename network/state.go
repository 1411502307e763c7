// Package network presents every socket as a sequence of discrete
// completion events. A State carries the connection, a tri-state tag, the
// staged receive bytes and the callback to run when the next read completes.
package network

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
)

// PacketSize is the size of one receive.
const PacketSize = 1024

// outboxSize bounds the writes queued behind a slow peer.
const outboxSize = 256

var (
	// ErrInvalidState is returned when an operation does not fit the
	// connection's current state. It wraps ErrDisconnected or ErrHasData.
	ErrInvalidState = errors.New("invalid connection state")
	ErrDisconnected = errors.New("connection is disconnected")
	ErrHasData      = errors.New("unread data is pending")
	// ErrSendQueueFull means the peer is not draining its writes.
	ErrSendQueueFull = errors.New("send queue full")
)

// ConnectionState tags a State.
type ConnectionState int

const (
	// Connected is idle and writable.
	Connected ConnectionState = iota
	// Disconnected has been torn down.
	Disconnected
	// HasData has unread bytes staged.
	HasData
)

func (c ConnectionState) String() string {
	switch c {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case HasData:
		return "has-data"
	}
	return fmt.Sprintf("state(%d)", int(c))
}

// Callback is the continuation run on the next completed I/O event.
type Callback func(*State)

type outgoing struct {
	text string
	done func(error)
}

// State wraps one socket.
type State struct {
	// Session identifies the connection in logs and persisted stats.
	Session uuid.UUID

	mu       deadlock.Mutex
	conn     net.Conn
	status   ConnectionState
	callback Callback
	id       int
	reading  bool
	staged   []byte
	buf      [PacketSize]byte

	outbox    chan outgoing
	closed    chan struct{}
	closeOnce sync.Once
}

func newState(conn net.Conn, cb Callback, status ConnectionState) *State {
	s := &State{
		Session:  uuid.New(),
		conn:     conn,
		status:   status,
		callback: cb,
		id:       -1,
		outbox:   make(chan outgoing, outboxSize),
		closed:   make(chan struct{}),
	}
	if conn != nil {
		go s.writeLoop()
	}
	return s
}

// Status returns the current tag.
func (s *State) Status() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetCallback replaces the continuation for the next completion.
func (s *State) SetCallback(cb Callback) {
	s.mu.Lock()
	s.callback = cb
	s.mu.Unlock()
}

// ID returns the player uid bound to this connection, or -1.
func (s *State) ID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetID binds the connection to a player uid.
func (s *State) SetID(id int) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

// RemoteAddr returns the peer address, or "" before the dial completes.
func (s *State) RemoteAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

// Drain hands over the staged bytes and moves HasData back to Connected.
func (s *State) Drain() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.staged
	s.staged = nil
	if s.status == HasData {
		s.status = Connected
	}
	return data
}

// receive performs one read and reports it to the callback exactly once.
func (s *State) receive() {
	n, err := s.conn.Read(s.buf[:])

	s.mu.Lock()
	s.reading = false
	switch {
	case err != nil || n == 0:
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && s.status != Disconnected {
			log.Printf("conn %s: read: %v", s.Session, err)
		}
		s.status = Disconnected
	default:
		s.staged = append(s.staged, s.buf[:n]...)
		s.status = HasData
	}
	cb := s.callback
	s.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

func (s *State) writeLoop() {
	for {
		select {
		case <-s.closed:
			return
		case m := <-s.outbox:
			_, err := io.WriteString(s.conn, m.text)
			if m.done != nil {
				m.done(err)
			}
			if err != nil {
				select {
				case <-s.closed:
				default:
					log.Printf("conn %s: write: %v", s.Session, err)
				}
				s.close()
				return
			}
		}
	}
}

func (s *State) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.status = Disconnected
		conn := s.conn
		s.mu.Unlock()
		close(s.closed)
		if conn != nil {
			conn.Close()
		}
	})
}
