package concurrent

import "sync"

// DefaultGateCap is the number of logical generations allowed in flight at once.
const DefaultGateCap = 2

// Gate counts units of work in flight and refuses new work once the cap is reached.
// It never queues: a caller at the cap is turned away.
type Gate struct {
	mu       sync.Mutex
	capacity int
	inFlight int
}

// NewGate creates a gate admitting at most capacity concurrent holders.
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = DefaultGateCap
	}
	return &Gate{capacity: capacity}
}

// TryAcquire increments the in-flight count and returns true, or returns false without
// touching the count when the gate is full.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight >= g.capacity {
		return false
	}
	g.inFlight++
	return true
}

// Release gives back one slot taken by TryAcquire.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight > 0 {
		g.inFlight--
	}
}

// InFlight returns the current number of holders.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Cap returns the maximum number of holders.
func (g *Gate) Cap() int {
	return g.capacity
}
