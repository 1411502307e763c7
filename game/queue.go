package game

import "github.com/sasha-s/go-deadlock"

// Request is one line received from a player, waiting for the next tick.
type Request struct {
	PlayerID int
	Message  string
	// Leave asks the simulation to remove the player's whole team.
	Leave bool
}

// RequestQueue is the pending-request buffer shared by connection goroutines
// and the simulation loop. Drain swaps the buffer out so producers only
// contend for a slice append.
type RequestQueue struct {
	mu      deadlock.Mutex
	pending []Request
}

// Push appends r in arrival order.
func (q *RequestQueue) Push(r Request) {
	q.mu.Lock()
	q.pending = append(q.pending, r)
	q.mu.Unlock()
}

// Drain detaches everything queued so far.
func (q *RequestQueue) Drain() []Request {
	q.mu.Lock()
	out := q.pending
	q.pending = nil
	q.mu.Unlock()
	return out
}

// Len returns the number of queued requests.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
