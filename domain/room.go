// Package domain contains core concepts of the chat system.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoomID is an opaque room identifier.
type RoomID string

// Room is a named channel scoping message visibility and fan-out.
// Immutable after creation.
type Room struct {
	ID        RoomID
	Name      string
	CreatedAt time.Time
}

func NewRoom(name string) Room {
	return Room{
		ID:        RoomID(uuid.NewString()),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}
