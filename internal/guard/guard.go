// Package guard serializes access to buckets.
//
// A Guard hands out at most one holder per bucket hash at a time. Callers
// for different hashes never wait on each other. Slots are created the first
// time a hash is acquired and dropped again once it is free with nobody
// waiting, so the table only grows with the number of hashes in flight.
package guard

import (
	"fmt"
	"sync"
)

type slot struct {
	held    bool
	waiters int
	cond    *sync.Cond
}

type Guard struct {
	mu    sync.Mutex // protects slots; distinct from the per-hash holds it hands out
	slots map[uint32]*slot
}

func New() *Guard {
	return &Guard{slots: make(map[uint32]*slot)}
}

// Acquire blocks until no one else holds h and then marks it held. The check
// and the mark happen under the same lock, so two callers can never both see
// h free and proceed.
//
// Acquire is not reentrant: calling it twice for the same hash without a
// Release in between deadlocks.
func (g *Guard) Acquire(h uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[h]
	if !ok {
		s = &slot{cond: sync.NewCond(&g.mu)}
		g.slots[h] = s
	}

	for s.held {
		s.waiters++
		s.cond.Wait()
		s.waiters--
	}
	s.held = true
}

// Release clears the hold on h and wakes one waiter, if any. Releasing a
// hash that is not held panics.
func (g *Guard) Release(h uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[h]
	if !ok || !s.held {
		panic(fmt.Sprintf("guard: release of unheld bucket %x", h))
	}

	s.held = false
	if s.waiters > 0 {
		s.cond.Signal()
		return
	}
	delete(g.slots, h)
}

// Do runs fn while holding h. The hold is released on every exit path,
// including a panic inside fn.
func (g *Guard) Do(h uint32, fn func() error) error {
	g.Acquire(h)
	defer g.Release(h)

	return fn()
}

// Len returns the number of hashes currently held or waited on.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.slots)
}
