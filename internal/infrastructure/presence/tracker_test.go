package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegisterThenOnline(t *testing.T) {
	tracker := NewMemoryTracker()

	assert.False(t, tracker.IsOnline("u1"))

	tracker.Register("u1", "c1")
	assert.True(t, tracker.IsOnline("u1"))
}

func TestUnregisterLastHandleGoesOffline(t *testing.T) {
	tracker := NewMemoryTracker()
	tracker.Register("u1", "c1")

	wentOffline := tracker.Unregister("u1", "c1")

	assert.True(t, wentOffline)
	assert.False(t, tracker.IsOnline("u1"))
}

func TestTwoDevicesStayOnlineAfterOneDrops(t *testing.T) {
	tracker := NewMemoryTracker()
	tracker.Register("u1", "phone")
	tracker.Register("u1", "laptop")

	wentOffline := tracker.Unregister("u1", "phone")

	assert.False(t, wentOffline)
	assert.True(t, tracker.IsOnline("u1"))

	wentOffline = tracker.Unregister("u1", "laptop")
	assert.True(t, wentOffline)
	assert.False(t, tracker.IsOnline("u1"))
}

func TestUnregisterUnknownUser(t *testing.T) {
	tracker := NewMemoryTracker()

	assert.False(t, tracker.Unregister("ghost", "c1"))
}

func TestSweepRemovesStaleEntries(t *testing.T) {
	tracker := NewMemoryTracker()
	tracker.Register("stale", "c1")
	tracker.Register("fresh", "c2")

	// Backdate the stale connection directly.
	tracker.mu.Lock()
	tracker.entries["stale"].conns["c1"] = time.Now().Add(-10 * time.Minute)
	tracker.mu.Unlock()

	wentOffline := tracker.Sweep(5 * time.Minute)

	assert.Equal(t, []string{"stale"}, wentOffline)
	assert.False(t, tracker.IsOnline("stale"))
	assert.True(t, tracker.IsOnline("fresh"))
}

func TestTouchKeepsConnectionAlive(t *testing.T) {
	tracker := NewMemoryTracker()
	tracker.Register("u1", "c1")

	tracker.mu.Lock()
	tracker.entries["u1"].conns["c1"] = time.Now().Add(-10 * time.Minute)
	tracker.mu.Unlock()

	tracker.Touch("u1", "c1")

	wentOffline := tracker.Sweep(5 * time.Minute)
	assert.Empty(t, wentOffline)
	assert.True(t, tracker.IsOnline("u1"))
}

func TestLastSeenReported(t *testing.T) {
	tracker := NewMemoryTracker()

	_, ok := tracker.LastSeen("u1")
	assert.False(t, ok)

	tracker.Register("u1", "c1")
	seen, ok := tracker.LastSeen("u1")
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), seen, time.Second)
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	tracker := NewMemoryTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := string(rune('a' + n%26))
			tracker.Register("u1", connID)
			tracker.Touch("u1", connID)
			tracker.Unregister("u1", connID)
		}(i)
	}
	wg.Wait()

	assert.False(t, tracker.IsOnline("u1"))
}
