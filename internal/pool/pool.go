// Package pool holds seekers who requested a match but received none yet.
// The pool is in-memory on purpose: entries do not survive a restart, and a
// reconnecting seeker simply requests again.
package pool

import (
	"sync"
	"time"

	"github.com/mindbridge/peerchat-server/internal/model"
)

type WaitingPool interface {
	// Add enqueues the seeker. Returns false without modifying the pool if
	// the seeker is already waiting.
	Add(entry model.WaitingEntry) bool
	// Remove drops the seeker's entry if present. Idempotent.
	Remove(seekerID string) bool
	Contains(seekerID string) bool
	// Entries returns a snapshot in arrival order.
	Entries() []model.WaitingEntry
	// EvictOlderThan removes and returns every entry enqueued before cutoff.
	EvictOlderThan(cutoff time.Time) []model.WaitingEntry
	Len() int
}

type memoryPool struct {
	mu      sync.Mutex
	entries map[string]model.WaitingEntry
	order   []string
}

func NewMemoryPool() WaitingPool {
	return &memoryPool{
		entries: make(map[string]model.WaitingEntry),
	}
}

func (p *memoryPool) Add(entry model.WaitingEntry) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[entry.SeekerID]; ok {
		return false
	}
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now()
	}
	p.entries[entry.SeekerID] = entry
	p.order = append(p.order, entry.SeekerID)
	return true
}

func (p *memoryPool) Remove(seekerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(seekerID)
}

func (p *memoryPool) removeLocked(seekerID string) bool {
	if _, ok := p.entries[seekerID]; !ok {
		return false
	}
	delete(p.entries, seekerID)
	for i, id := range p.order {
		if id == seekerID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

func (p *memoryPool) Contains(seekerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[seekerID]
	return ok
}

func (p *memoryPool) Entries() []model.WaitingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]model.WaitingEntry, 0, len(p.order))
	for _, id := range p.order {
		entries = append(entries, p.entries[id])
	}
	return entries
}

func (p *memoryPool) EvictOlderThan(cutoff time.Time) []model.WaitingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	var evicted []model.WaitingEntry
	for _, id := range append([]string(nil), p.order...) {
		entry := p.entries[id]
		if entry.EnqueuedAt.Before(cutoff) {
			p.removeLocked(id)
			evicted = append(evicted, entry)
		}
	}
	return evicted
}

func (p *memoryPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
