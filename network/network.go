package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/time/rate"
)

const dialTimeout = 5 * time.Second

// Connect dials hostPort in the background. When the dial completes the
// state becomes Connected or Disconnected, cb runs, and a connected state
// has its first read armed.
func Connect(ctx context.Context, cb Callback, hostPort string) *State {
	s := newState(nil, cb, Connected)
	go func() {
		d := net.Dialer{Timeout: dialTimeout}
		conn, err := d.DialContext(ctx, "tcp", hostPort)
		if err != nil {
			log.Printf("conn %s: dial %s: %v", s.Session, hostPort, err)
			s.close()
			cb(s)
			return
		}

		s.mu.Lock()
		if s.status == Disconnected {
			// closed while dialing
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()
		go s.writeLoop()

		cb(s)
		if err := RequestMoreData(s); err != nil && !errors.Is(err, ErrHasData) {
			log.Printf("conn %s: arm first read: %v", s.Session, err)
		}
	}()
	return s
}

// Adopt wraps an already established connection as Connected and runs cb.
// The callback arms the first read.
func Adopt(conn net.Conn, cb Callback) *State {
	s := newState(conn, cb, Connected)
	cb(s)
	return s
}

// RequestMoreData arms the next read. It fails on a Disconnected state and
// on a state whose staged bytes have not been drained.
func RequestMoreData(s *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case Disconnected:
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrDisconnected)
	case HasData:
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrHasData)
	}
	if s.conn == nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrDisconnected)
	}
	if s.reading {
		return nil
	}
	s.reading = true
	go s.receive()
	return nil
}

// Send queues text for writing. Writes on one state go out in Send order.
// done, when non-nil, runs after the write completes.
func Send(s *State, text string, done func(error)) error {
	if s.Status() == Disconnected {
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrDisconnected)
	}
	select {
	case <-s.closed:
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrDisconnected)
	case s.outbox <- outgoing{text: text, done: done}:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close tears the connection down. Reads in flight complete as Disconnected.
func Close(s *State) {
	s.close()
}

// ListenConfig holds accept throttling settings.
type ListenConfig struct {
	// PerIPRate and PerIPBurst bound how often one address may connect.
	PerIPRate  rate.Limit
	PerIPBurst int
}

// DefaultListenConfig allows each address a burst of 10 connects, refilling
// at two per second.
var DefaultListenConfig = ListenConfig{PerIPRate: 2, PerIPBurst: 10}

// Listener is a persistent accept loop.
type Listener struct {
	ln  net.Listener
	cb  Callback
	cfg ListenConfig

	mu       deadlock.Mutex
	limiters map[string]*ipLimiter
}

type ipLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// Listen binds addr with DefaultListenConfig.
func Listen(ctx context.Context, cb Callback, addr string) (*Listener, error) {
	return DefaultListenConfig.Listen(ctx, cb, addr)
}

// Listen binds addr and accepts connections until ctx is done or Close is
// called. Every accepted socket becomes a Connected state handed to cb.
func (c ListenConfig) Listen(ctx context.Context, cb Callback, addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	l := &Listener{
		ln:       ln,
		cb:       cb,
		cfg:      c,
		limiters: make(map[string]*ipLimiter),
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	go l.prune(ctx)
	go l.acceptLoop()
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting.
func (l *Listener) Close() error { return l.ln.Close() }

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("accept: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if !l.allow(host) {
			log.Printf("accept: throttling %s", host)
			conn.Close()
			continue
		}
		Adopt(conn, l.cb)
	}
}

func (l *Listener) allow(host string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	il, ok := l.limiters[host]
	if !ok {
		il = &ipLimiter{lim: rate.NewLimiter(l.cfg.PerIPRate, l.cfg.PerIPBurst)}
		l.limiters[host] = il
	}
	il.seen = time.Now()
	return il.lim.Allow()
}

// prune drops limiters for addresses that have been quiet for a minute.
func (l *Listener) prune(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Minute)
			l.mu.Lock()
			for host, il := range l.limiters {
				if il.seen.Before(cutoff) {
					delete(l.limiters, host)
				}
			}
			l.mu.Unlock()
		}
	}
}
