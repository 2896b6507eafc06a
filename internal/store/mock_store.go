// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject store failures

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	messages map[string]*Message // keyed by message ID
	order    []string            // insertion order

	// Fail* make the matching operation return the error when non-nil.
	FailInsert error
	FailUpdate error
	FailFind   error

	// Now overrides the clock used for CreatedAt.
	Now func() time.Time
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		messages: make(map[string]*Message),
	}
}

// InsertMessage stores a copy of msg and assigns its ID and CreatedAt.
func (m *MockStore) InsertMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInsert != nil {
		return m.FailInsert
	}
	if msg.Status == "" {
		msg.Status = StatusSent
	}
	if !msg.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, msg.Status)
	}

	msg.ID = uuid.New().String()
	if m.Now != nil {
		msg.CreatedAt = m.Now().UTC()
	} else {
		msg.CreatedAt = time.Now().UTC()
	}

	// Make a copy to avoid external modification
	stored := *msg
	m.messages[stored.ID] = &stored
	m.order = append(m.order, stored.ID)
	return nil
}

// UpdateMessageStatus advances a message's status if the move is forward.
func (m *MockStore) UpdateMessageStatus(ctx context.Context, id string, status MessageStatus) (int64, error) {
	return m.update(id, "", status)
}

// UpdateMessageStatusIfRecipient advances the status only for the recipient's messages.
func (m *MockStore) UpdateMessageStatusIfRecipient(ctx context.Context, id, recipient string, status MessageStatus) (int64, error) {
	return m.update(id, recipient, status)
}

func (m *MockStore) update(id, recipient string, status MessageStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpdate != nil {
		return 0, m.FailUpdate
	}
	if !status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	msg, ok := m.messages[id]
	if !ok {
		return 0, nil
	}
	if recipient != "" && msg.Recipient != recipient {
		return 0, nil
	}
	if !msg.Status.Advances(status) {
		return 0, nil
	}
	msg.Status = status
	return 1, nil
}

// FindMessage returns a copy of the stored message.
func (m *MockStore) FindMessage(ctx context.Context, id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailFind != nil {
		return nil, m.FailFind
	}
	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *msg
	return &c, nil
}

// Messages returns copies of all stored messages in insertion order.
func (m *MockStore) Messages() []*Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Message, 0, len(m.order))
	for _, id := range m.order {
		c := *m.messages[id]
		out = append(out, &c)
	}
	return out
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}
