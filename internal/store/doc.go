// Package store provides durable message storage for the gateway.
//
// # Architecture
//
// Store is the narrow interface the delivery engine depends on:
//
//   - InsertMessage: persist a new message; the store assigns ID and CreatedAt
//   - UpdateMessageStatus: advance a message's status
//   - UpdateMessageStatusIfRecipient: advance only when the caller is the recipient
//   - FindMessage: look a message up by ID
//
// SQLiteStore is the production implementation; MockStore is an in-memory
// implementation with failure injection for tests.
//
// # Status Lifecycle
//
// Message status only moves forward:
//
//	Sent -> Delivered -> Read
//
// Both implementations refuse backward and repeated transitions by reporting
// zero modified rows. SQLiteStore enforces this inside the UPDATE's WHERE clause,
// so concurrent writers cannot race a message backwards.
//
// # SQLite Configuration
//
// File databases are opened in WAL mode with a busy timeout. Writes retry
// transient SQLITE_BUSY / SQLITE_LOCKED errors with exponential backoff.
// The path ":memory:" opens a single-connection in-memory database.
package store
