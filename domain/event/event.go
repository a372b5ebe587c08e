package event

import (
	"chat-relay/domain"
)

// DomainEvent is anything the fan-out and the async workers can consume.
type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessagePosted is emitted after a message has been durably persisted.
// It is the only event the realtime push path carries today.
type MessagePosted struct {
	Message domain.Message
}

func (e MessagePosted) RoomID() domain.RoomID {
	return e.Message.Room
}
