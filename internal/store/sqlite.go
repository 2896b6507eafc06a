// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides message persistence with forward-only status updates enforced in SQL

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// statusRankSQL maps the stored status column onto its lifecycle rank so
// updates can refuse to move a message backwards.
const statusRankSQL = `CASE status WHEN 'Sent' THEN 0 WHEN 'Delivered' THEN 1 WHEN 'Read' THEN 2 ELSE 3 END`

// timeLayout stores UTC instants at fixed width so text order in SQL is
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dsn := path
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			sender          TEXT NOT NULL,
			recipient       TEXT NOT NULL,
			content         TEXT NOT NULL,
			is_bot_response INTEGER NOT NULL DEFAULT 0,
			status          TEXT NOT NULL DEFAULT 'Sent',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,

			CHECK (status IN ('Sent', 'Delivered', 'Read'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_sender_created
			ON messages(sender, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_messages_recipient_created
			ON messages(recipient, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_messages_created
			ON messages(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertMessage persists a new message, assigning its ID and CreatedAt.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *Message) error {
	if msg.Status == "" {
		msg.Status = StatusSent
	}
	if !msg.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, msg.Status)
	}

	id := uuid.New().String()
	createdAt := s.now()
	ts := formatTime(createdAt)

	query := `
		INSERT INTO messages (id, sender, recipient, content, is_bot_response, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query,
			id,
			msg.Sender,
			msg.Recipient,
			msg.Content,
			msg.IsBotResponse,
			string(msg.Status),
			ts,
			ts,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = createdAt

	s.logger.Debug("inserted message", "message_id", id, "recipient", msg.Recipient)
	return nil
}

// UpdateMessageStatus advances the status of a message.
// Returns the number of rows modified (0 when the message is unknown or
// already at or past status).
func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, id string, status MessageStatus) (int64, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	query := `
		UPDATE messages SET status = ?, updated_at = ?
		WHERE id = ? AND ` + statusRankSQL + ` < ?
	`

	return s.execUpdate(ctx, query,
		string(status),
		formatTime(s.now()),
		id,
		status.Rank(),
	)
}

// UpdateMessageStatusIfRecipient advances the status of a message only if it
// was addressed to recipient.
func (s *SQLiteStore) UpdateMessageStatusIfRecipient(ctx context.Context, id, recipient string, status MessageStatus) (int64, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	query := `
		UPDATE messages SET status = ?, updated_at = ?
		WHERE id = ? AND recipient = ? AND ` + statusRankSQL + ` < ?
	`

	return s.execUpdate(ctx, query,
		string(status),
		formatTime(s.now()),
		id,
		recipient,
		status.Rank(),
	)
}

func (s *SQLiteStore) execUpdate(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := retryOnContention(ctx, func() error {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("updating message status: %w", err)
	}
	return affected, nil
}

// FindMessage retrieves a message by ID.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) FindMessage(ctx context.Context, id string) (*Message, error) {
	query := `
		SELECT id, sender, recipient, content, is_bot_response, status, created_at
		FROM messages
		WHERE id = ?
	`

	var msg Message
	var status, createdAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.Sender,
		&msg.Recipient,
		&msg.Content,
		&msg.IsBotResponse,
		&status,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}

	msg.Status, err = ParseStatus(status)
	if err != nil {
		return nil, err
	}

	// RFC3339Nano accepts the fixed-width fraction written by formatTime.
	msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &msg, nil
}
