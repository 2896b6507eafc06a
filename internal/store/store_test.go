// ABOUTME: Contract tests shared by every Store implementation
// ABOUTME: Covers insert, forward-only status updates, recipient-scoped updates, and lookups

package store

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// implementations returns a fresh instance of every Store implementation.
func implementations(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"sqlite": setupTestStore(t),
		"mock":   NewMockStore(),
	}
}

func insertTestMessage(t *testing.T, s Store, sender, recipient string) *Message {
	t.Helper()
	msg := &Message{
		Sender:    sender,
		Recipient: recipient,
		Content:   "hello",
	}
	require.NoError(t, s.InsertMessage(context.Background(), msg))
	return msg
}

func TestStore_InsertAssignsIDAndTimestamp(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			before := time.Now().UTC()
			msg := insertTestMessage(t, s, "alice@example.com", "bob@example.com")
			after := time.Now().UTC()

			assert.NotEmpty(t, msg.ID)
			assert.Equal(t, StatusSent, msg.Status)
			assert.Equal(t, time.UTC, msg.CreatedAt.Location())
			assert.False(t, msg.CreatedAt.Before(before.Add(-time.Millisecond)))
			assert.False(t, msg.CreatedAt.After(after.Add(time.Millisecond)))

			got, err := s.FindMessage(context.Background(), msg.ID)
			require.NoError(t, err)
			assert.Equal(t, msg.ID, got.ID)
			assert.Equal(t, "alice@example.com", got.Sender)
			assert.Equal(t, "bob@example.com", got.Recipient)
			assert.Equal(t, "hello", got.Content)
			assert.Equal(t, StatusSent, got.Status)
			assert.False(t, got.IsBotResponse)
			assert.True(t, msg.CreatedAt.Equal(got.CreatedAt))
		})
	}
}

func TestStore_InsertBotResponse(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			msg := &Message{
				Sender:        "bot@example.com",
				Recipient:     "alice@example.com",
				Content:       "Hello!",
				IsBotResponse: true,
			}
			require.NoError(t, s.InsertMessage(context.Background(), msg))

			got, err := s.FindMessage(context.Background(), msg.ID)
			require.NoError(t, err)
			assert.True(t, got.IsBotResponse)
		})
	}
}

func TestStore_InsertRejectsUnknownStatus(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			msg := &Message{Sender: "a", Recipient: "b", Content: "c", Status: "Lost"}
			err := s.InsertMessage(context.Background(), msg)
			require.ErrorIs(t, err, ErrInvalidStatus)
		})
	}
}

func TestStore_FindMessageNotFound(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.FindMessage(context.Background(), "00000000-0000-0000-0000-000000000000")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_UpdateStatusForwardOnly(t *testing.T) {
	tests := []struct {
		name    string
		steps   []MessageStatus
		wantN   []int64
		wantEnd MessageStatus
	}{
		{
			name:    "sent to delivered to read",
			steps:   []MessageStatus{StatusDelivered, StatusRead},
			wantN:   []int64{1, 1},
			wantEnd: StatusRead,
		},
		{
			name:    "skip delivered",
			steps:   []MessageStatus{StatusRead},
			wantN:   []int64{1},
			wantEnd: StatusRead,
		},
		{
			name:    "read then delivered is ignored",
			steps:   []MessageStatus{StatusRead, StatusDelivered},
			wantN:   []int64{1, 0},
			wantEnd: StatusRead,
		},
		{
			name:    "repeated delivered is ignored",
			steps:   []MessageStatus{StatusDelivered, StatusDelivered},
			wantN:   []int64{1, 0},
			wantEnd: StatusDelivered,
		},
		{
			name:    "back to sent is ignored",
			steps:   []MessageStatus{StatusDelivered, StatusSent},
			wantN:   []int64{1, 0},
			wantEnd: StatusDelivered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for name, s := range implementations(t) {
				t.Run(name, func(t *testing.T) {
					ctx := context.Background()
					msg := insertTestMessage(t, s, "alice@example.com", "bob@example.com")

					for i, st := range tt.steps {
						n, err := s.UpdateMessageStatus(ctx, msg.ID, st)
						require.NoError(t, err)
						assert.Equal(t, tt.wantN[i], n, "step %d (%s)", i, st)
					}

					got, err := s.FindMessage(ctx, msg.ID)
					require.NoError(t, err)
					assert.Equal(t, tt.wantEnd, got.Status)
				})
			}
		})
	}
}

func TestStore_UpdateUnknownMessage(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			n, err := s.UpdateMessageStatus(context.Background(), "missing", StatusDelivered)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_UpdateStatusIfRecipient(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			msg := insertTestMessage(t, s, "alice@example.com", "bob@example.com")

			// Wrong recipient modifies nothing
			n, err := s.UpdateMessageStatusIfRecipient(ctx, msg.ID, "carol@example.com", StatusRead)
			require.NoError(t, err)
			assert.Zero(t, n)

			// Sender is not the recipient either
			n, err = s.UpdateMessageStatusIfRecipient(ctx, msg.ID, "alice@example.com", StatusRead)
			require.NoError(t, err)
			assert.Zero(t, n)

			got, err := s.FindMessage(ctx, msg.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusSent, got.Status)

			// Real recipient succeeds once
			n, err = s.UpdateMessageStatusIfRecipient(ctx, msg.ID, "bob@example.com", StatusRead)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			// Already read converges without modification
			n, err = s.UpdateMessageStatusIfRecipient(ctx, msg.ID, "bob@example.com", StatusRead)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_ConcurrentUpdatesNeverRegress(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const messages = 5
			const writers = 8

			ids := make([]string, messages)
			for i := range ids {
				ids[i] = insertTestMessage(t, s, "alice@example.com", "bob@example.com").ID
			}

			statuses := []MessageStatus{StatusSent, StatusDelivered, StatusRead}

			// Each writer applies a random interleaving of updates while a
			// reader samples statuses and checks they never go backwards.
			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(seed uint64) {
					defer wg.Done()
					rng := rand.New(rand.NewPCG(seed, seed+1))
					for i := 0; i < 25; i++ {
						id := ids[rng.IntN(len(ids))]
						st := statuses[rng.IntN(len(statuses))]
						var err error
						if rng.IntN(2) == 0 {
							_, err = s.UpdateMessageStatus(ctx, id, st)
						} else {
							_, err = s.UpdateMessageStatusIfRecipient(ctx, id, "bob@example.com", st)
						}
						assert.NoError(t, err)
					}
				}(uint64(w))
			}

			done := make(chan struct{})
			regressions := make(chan string, messages)
			go func() {
				defer close(regressions)
				last := make(map[string]int)
				for {
					select {
					case <-done:
						return
					default:
					}
					for _, id := range ids {
						got, err := s.FindMessage(ctx, id)
						if err != nil {
							continue
						}
						if got.Status.Rank() < last[id] {
							regressions <- id
							return
						}
						last[id] = got.Status.Rank()
					}
				}
			}()

			wg.Wait()
			close(done)
			for id := range regressions {
				t.Errorf("status regressed for message %s", id)
			}
		})
	}
}

func TestMessageStatus_Advances(t *testing.T) {
	assert.True(t, StatusSent.Advances(StatusDelivered))
	assert.True(t, StatusSent.Advances(StatusRead))
	assert.True(t, StatusDelivered.Advances(StatusRead))
	assert.False(t, StatusRead.Advances(StatusDelivered))
	assert.False(t, StatusDelivered.Advances(StatusDelivered))
	assert.False(t, StatusDelivered.Advances(StatusSent))
	assert.False(t, StatusSent.Advances("Lost"))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("Delivered")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, st)

	_, err = ParseStatus("delivered")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
