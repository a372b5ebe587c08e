// Package projection builds local read models from observed events.
// It does not emit events or talk to the network.
package projection

import (
	"context"
	"sync"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Timeline keeps a capped in-memory buffer of recent messages per room,
// used to replay history to a freshly joined connection. It is rebuilt from
// zero on process restart.
type Timeline struct {
	mu     sync.RWMutex
	depth  int
	recent map[domain.RoomID][]domain.Message
}

func NewTimeline(depth int) *Timeline {
	return &Timeline{
		depth:  depth,
		recent: make(map[domain.RoomID][]domain.Message),
	}
}

// Consume makes Timeline a permanent broadcast sink.
func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	buffer := append(t.recent[posted.Message.Room], posted.Message)
	if len(buffer) > t.depth {
		buffer = buffer[len(buffer)-t.depth:]
	}
	t.recent[posted.Message.Room] = buffer
	return nil
}

// Recent returns a copy of the room's buffer, oldest first.
func (t *Timeline) Recent(roomID domain.RoomID) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	buffer := t.recent[roomID]
	if len(buffer) == 0 {
		return nil
	}
	out := make([]domain.Message, len(buffer))
	copy(out, buffer)
	return out
}
