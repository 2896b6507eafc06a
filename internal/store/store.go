// ABOUTME: Store interface and data types for ease-gateway message persistence
// ABOUTME: Defines Message, MessageStatus and the Store interface used by the delivery engine

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidStatus is returned when a status string is not one of Sent, Delivered, Read
var ErrInvalidStatus = errors.New("invalid message status")

// MessageStatus is the delivery state of a message. Statuses are ordered and
// only ever move forward: Sent -> Delivered -> Read.
type MessageStatus string

const (
	StatusSent      MessageStatus = "Sent"
	StatusDelivered MessageStatus = "Delivered"
	StatusRead      MessageStatus = "Read"
)

// Rank returns the position of the status in the lifecycle, or -1 if unknown.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	return s.Rank() >= 0
}

// Advances reports whether moving from s to next is a forward transition.
func (s MessageStatus) Advances(next MessageStatus) bool {
	return next.Valid() && next.Rank() > s.Rank()
}

// ParseStatus converts a stored status string into a MessageStatus.
func ParseStatus(s string) (MessageStatus, error) {
	st := MessageStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Message is a single direct message between two identities.
// ID and CreatedAt are assigned by the store on insert.
type Message struct {
	ID            string
	Sender        string
	Recipient     string
	Content       string
	IsBotResponse bool
	Status        MessageStatus
	CreatedAt     time.Time
}

// Store defines the durable operations the delivery engine relies on.
type Store interface {
	// InsertMessage persists msg, assigning ID and CreatedAt. An empty Status
	// is stored as StatusSent.
	InsertMessage(ctx context.Context, msg *Message) error

	// UpdateMessageStatus moves a message forward to status. It returns the
	// number of rows modified; backward or repeated transitions modify nothing.
	UpdateMessageStatus(ctx context.Context, id string, status MessageStatus) (int64, error)

	// UpdateMessageStatusIfRecipient is UpdateMessageStatus restricted to
	// messages addressed to recipient.
	UpdateMessageStatusIfRecipient(ctx context.Context, id, recipient string, status MessageStatus) (int64, error)

	// FindMessage returns the message with the given ID or ErrNotFound.
	FindMessage(ctx context.Context, id string) (*Message, error)

	Close() error
}
