package presence

import (
	"context"
	"sync"
	"time"

	"lokapasar/pkg/logger"
)

// Tracker is the best-effort "who is online right now" registry. An identity
// is online while it has at least one registered connection. Implementations
// must be safe under concurrent register/unregister/sweep.
//
// The in-memory implementation below is process-local; a multi-instance
// deployment would substitute a shared store behind this interface.
type Tracker interface {
	Register(userID, connID string)
	// Unregister removes one connection; it returns true when that was the
	// identity's last connection, i.e. the identity just went offline.
	Unregister(userID, connID string) bool
	Touch(userID, connID string)
	IsOnline(userID string) bool
	LastSeen(userID string) (time.Time, bool)
}

type entry struct {
	conns    map[string]time.Time // connID -> last seen
	lastSeen time.Time
}

type MemoryTracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		entries: make(map[string]*entry),
	}
}

func (t *MemoryTracker) Register(userID, connID string) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		e = &entry{conns: make(map[string]time.Time)}
		t.entries[userID] = e
	}
	e.conns[connID] = now
	e.lastSeen = now
}

func (t *MemoryTracker) Unregister(userID, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		return false
	}

	delete(e.conns, connID)
	e.lastSeen = time.Now()
	if len(e.conns) == 0 {
		delete(t.entries, userID)
		return true
	}
	return false
}

func (t *MemoryTracker) Touch(userID, connID string) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[userID]; ok {
		if _, registered := e.conns[connID]; registered {
			e.conns[connID] = now
			e.lastSeen = now
		}
	}
}

func (t *MemoryTracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[userID]
	return ok && len(e.conns) > 0
}

func (t *MemoryTracker) LastSeen(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[userID]
	if !ok {
		return time.Time{}, false
	}
	return e.lastSeen, true
}

// Sweep removes connections that have not been seen within staleAfter,
// guarding against sockets that vanished without a clean close. Returns the
// identities that went offline as a result.
func (t *MemoryTracker) Sweep(staleAfter time.Duration) []string {
	cutoff := time.Now().Add(-staleAfter)

	t.mu.Lock()
	defer t.mu.Unlock()

	var wentOffline []string
	for userID, e := range t.entries {
		for connID, seen := range e.conns {
			if seen.Before(cutoff) {
				delete(e.conns, connID)
			}
		}
		if len(e.conns) == 0 {
			delete(t.entries, userID)
			wentOffline = append(wentOffline, userID)
		}
	}
	return wentOffline
}

// StartSweep runs the periodic staleness pass until ctx is cancelled.
func (t *MemoryTracker) StartSweep(ctx context.Context, interval, staleAfter time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if stale := t.Sweep(staleAfter); len(stale) > 0 {
					logger.Debug("Presence sweep dropped %d stale identities", len(stale))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
