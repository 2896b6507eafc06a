// ABOUTME: Per-user conversation memory for the bot with TTL and LRU eviction
// ABOUTME: Thread-safe; idle users expire and the least recently active is evicted at capacity

package responder

import (
	"container/list"
	"sync"
	"time"
)

// Turn is one entry in a user's conversation with the bot.
type Turn struct {
	Text     string
	FromUser bool
	Intent   string
	At       time.Time
}

// memoryEntry holds one user's history and its position in the LRU list.
type memoryEntry struct {
	turns      []Turn
	lastIntent string
	lastSeen   time.Time
	element    *list.Element
}

// Memory keeps a bounded history per user. Entries idle for longer than ttl
// are dropped, and when maxUsers is reached the least recently active user is
// evicted. A background goroutine sweeps expired entries until Close.
type Memory struct {
	mu          sync.Mutex
	users       map[string]*memoryEntry
	order       *list.List // identities, least recently active at front
	historySize int
	ttl         time.Duration
	maxUsers    int
	now         func() time.Time
	done        chan struct{}
	closed      bool
}

// NewMemory creates a memory store. sweep is the interval of the background
// expiry pass; zero disables it.
func NewMemory(historySize int, ttl time.Duration, maxUsers int, sweep time.Duration) *Memory {
	return newMemory(historySize, ttl, maxUsers, sweep, time.Now)
}

func newMemory(historySize int, ttl time.Duration, maxUsers int, sweep time.Duration, now func() time.Time) *Memory {
	m := &Memory{
		users:       make(map[string]*memoryEntry),
		order:       list.New(),
		historySize: historySize,
		ttl:         ttl,
		maxUsers:    maxUsers,
		now:         now,
		done:        make(chan struct{}),
	}
	if sweep > 0 {
		go m.cleanup(sweep)
	}
	return m
}

// Append records turns for identity, trimming to the configured history size.
func (m *Memory) Append(identity string, turns ...Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.users[identity]
	if ok && m.expiredLocked(entry, now) {
		m.removeLocked(identity, entry)
		ok = false
	}
	if !ok {
		if m.maxUsers > 0 && len(m.users) >= m.maxUsers {
			m.evictOldest()
		}
		entry = &memoryEntry{element: m.order.PushBack(identity)}
		m.users[identity] = entry
	} else {
		m.order.MoveToBack(entry.element)
	}

	entry.lastSeen = now
	for _, t := range turns {
		entry.turns = append(entry.turns, t)
		if t.Intent != "" {
			entry.lastIntent = t.Intent
		}
	}
	if m.historySize > 0 && len(entry.turns) > m.historySize {
		entry.turns = append([]Turn(nil), entry.turns[len(entry.turns)-m.historySize:]...)
	}
}

// Recent returns up to n of identity's most recent turns, oldest first.
func (m *Memory) Recent(identity string, n int) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.users[identity]
	if !ok || m.expiredLocked(entry, m.now()) {
		return nil
	}
	turns := entry.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]Turn(nil), turns...)
}

// LastIntent returns the intent of identity's most recent turn.
func (m *Memory) LastIntent(identity string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.users[identity]
	if !ok || m.expiredLocked(entry, m.now()) {
		return ""
	}
	return entry.lastIntent
}

// Forget drops identity's history. It reports whether anything was removed.
func (m *Memory) Forget(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.users[identity]
	if !ok {
		return false
	}
	m.removeLocked(identity, entry)
	return true
}

// Len returns the number of users held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *Memory) expiredLocked(entry *memoryEntry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(entry.lastSeen) > m.ttl
}

func (m *Memory) removeLocked(identity string, entry *memoryEntry) {
	m.order.Remove(entry.element)
	delete(m.users, identity)
}

// evictOldest removes the least recently active user. Must be called with mu held.
func (m *Memory) evictOldest() {
	front := m.order.Front()
	if front == nil {
		return
	}
	identity, _ := front.Value.(string)
	m.order.Remove(front)
	delete(m.users, identity)
}

func (m *Memory) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.done:
			return
		}
	}
}

// sweep removes all expired entries.
func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for identity, entry := range m.users {
		if m.expiredLocked(entry, now) {
			m.removeLocked(identity, entry)
		}
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		close(m.done)
		m.closed = true
	}
}
