// ABOUTME: Tests specific to the SQLite store implementation
// ABOUTME: Covers file creation, in-memory mode, and SQL-level forward-only guard

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	msg := &Message{Sender: "a@example.com", Recipient: "b@example.com", Content: "hi"}
	require.NoError(t, store.InsertMessage(ctx, msg))

	got, err := store.FindMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	msg := &Message{Sender: "a@example.com", Recipient: "b@example.com", Content: "queued"}
	require.NoError(t, store.InsertMessage(ctx, msg))
	_, err = store.UpdateMessageStatus(ctx, msg.ID, StatusDelivered)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.FindMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status)
	assert.Equal(t, "queued", got.Content)
}

func TestSQLiteStore_RejectsInvalidStatusOnUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	msg := &Message{Sender: "a@example.com", Recipient: "b@example.com", Content: "hi"}
	require.NoError(t, store.InsertMessage(ctx, msg))

	_, err := store.UpdateMessageStatus(ctx, msg.ID, "Archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSQLiteStore_CreatedAtSortsChronologically(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	stamps := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(120 * time.Millisecond),
		base.Add(time.Second),
	}

	var ids []string
	for i, ts := range stamps {
		store.now = func() time.Time { return ts }
		msg := &Message{Sender: "a@example.com", Recipient: "b@example.com", Content: fmt.Sprintf("m%d", i)}
		require.NoError(t, store.InsertMessage(ctx, msg))
		ids = append(ids, msg.ID)

		got, err := store.FindMessage(ctx, msg.ID)
		require.NoError(t, err)
		assert.True(t, ts.Equal(got.CreatedAt), "round trip of %s", ts)
	}

	rows, err := store.db.QueryContext(ctx, "SELECT id, created_at FROM messages ORDER BY created_at")
	require.NoError(t, err)
	defer rows.Close()

	var ordered []string
	for rows.Next() {
		var id, createdAt string
		require.NoError(t, rows.Scan(&id, &createdAt))
		assert.Len(t, createdAt, len("2026-03-01T12:00:05.000000000Z"))
		ordered = append(ordered, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, ids, ordered)
}
