// Package domain contains core concepts of the chat system.
// This file defines Message and related rules.
// Messages are immutable once created.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event.
// Identity and timestamp are assigned by the pipeline, never by the caller.
type Message struct {
	ID        uuid.UUID
	Room      RoomID
	SenderID  string
	Content   string
	Lang      string // ISO 639-1 code detected at submit time, may be empty
	CreatedAt time.Time
}
