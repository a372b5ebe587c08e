package domain

import "time"

// User is a durable account record. The realtime core only ever sees the ID;
// profile attributes exist for the account CRUD surface.
type User struct {
	ID         string
	Email      string
	Name       string
	Picture    string
	Active     bool
	CreatedAt  time.Time
	LastSeenAt time.Time
}
