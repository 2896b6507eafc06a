// ABOUTME: Tests for per-user bot conversation memory
// ABOUTME: Validates history bounds, TTL expiry, LRU eviction, and concurrency safety

package responder

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func turn(text string) Turn {
	return Turn{Text: text, FromUser: true}
}

func TestMemory_AppendAndRecent(t *testing.T) {
	m := NewMemory(10, time.Hour, 100, 0)
	defer m.Close()

	m.Append("alice", turn("one"), turn("two"))
	m.Append("alice", turn("three"))

	got := m.Recent("alice", 0)
	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "three", got[2].Text)

	got = m.Recent("alice", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Text)

	assert.Empty(t, m.Recent("bob", 5))
}

func TestMemory_HistoryBounded(t *testing.T) {
	m := NewMemory(3, time.Hour, 100, 0)
	defer m.Close()

	for i := 0; i < 10; i++ {
		m.Append("alice", turn(fmt.Sprintf("msg-%d", i)))
	}

	got := m.Recent("alice", 0)
	require.Len(t, got, 3)
	assert.Equal(t, "msg-7", got[0].Text)
	assert.Equal(t, "msg-9", got[2].Text)
}

func TestMemory_Expiry(t *testing.T) {
	clock := newFakeClock()
	m := newMemory(10, time.Minute, 100, 0, clock.Now)
	defer m.Close()

	m.Append("alice", Turn{Text: "hi", Intent: "greeting"})
	assert.Equal(t, "greeting", m.LastIntent("alice"))

	clock.Advance(2 * time.Minute)
	assert.Empty(t, m.Recent("alice", 0))
	assert.Empty(t, m.LastIntent("alice"))

	// A new turn starts a fresh history
	m.Append("alice", turn("back"))
	got := m.Recent("alice", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "back", got[0].Text)
}

func TestMemory_Sweep(t *testing.T) {
	clock := newFakeClock()
	m := newMemory(10, time.Minute, 100, 0, clock.Now)
	defer m.Close()

	m.Append("alice", turn("a"))
	clock.Advance(30 * time.Second)
	m.Append("bob", turn("b"))
	clock.Advance(45 * time.Second)

	m.sweep()
	assert.Equal(t, 1, m.Len())
	assert.Empty(t, m.Recent("alice", 0))
	assert.Len(t, m.Recent("bob", 0), 1)
}

func TestMemory_EvictsLeastRecentlyActive(t *testing.T) {
	m := NewMemory(10, time.Hour, 2, 0)
	defer m.Close()

	m.Append("alice", turn("a"))
	m.Append("bob", turn("b"))
	// alice becomes most recent
	m.Append("alice", turn("a2"))
	m.Append("carol", turn("c"))

	assert.Equal(t, 2, m.Len())
	assert.Empty(t, m.Recent("bob", 0), "bob was least recently active")
	assert.Len(t, m.Recent("alice", 0), 2)
	assert.Len(t, m.Recent("carol", 0), 1)
}

func TestMemory_Forget(t *testing.T) {
	m := NewMemory(10, time.Hour, 100, 0)
	defer m.Close()

	m.Append("alice", turn("a"))
	assert.True(t, m.Forget("alice"))
	assert.False(t, m.Forget("alice"))
	assert.Zero(t, m.Len())
}

func TestMemory_RecentReturnsCopy(t *testing.T) {
	m := NewMemory(10, time.Hour, 100, 0)
	defer m.Close()

	m.Append("alice", turn("original"))
	got := m.Recent("alice", 0)
	got[0].Text = "mutated"

	assert.Equal(t, "original", m.Recent("alice", 0)[0].Text)
}

func TestMemory_CloseIdempotent(t *testing.T) {
	m := NewMemory(10, time.Hour, 100, time.Millisecond)
	m.Close()
	m.Close()
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory(5, time.Hour, 8, time.Millisecond)
	defer m.Close()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			identity := fmt.Sprintf("user-%d", w)
			for i := 0; i < 100; i++ {
				m.Append(identity, turn("x"))
				_ = m.Recent(identity, 3)
				_ = m.LastIntent(identity)
				if i%25 == 0 {
					m.Forget(identity)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 8)
}
