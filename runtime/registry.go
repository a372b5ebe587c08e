// Package runtime contains the realtime core: the membership registry, the
// room broadcaster and the message pipeline. It orchestrates the system
// without containing business logic or domain rules.
package runtime

import (
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
)

type connSet map[domain.ConnectionID]struct{}
type roomSet map[domain.RoomID]struct{}

// Registry maps every room to its currently subscribed connections, and
// every connection to the rooms it joined (for cleanup on disconnect).
// It is the single piece of mutable shared state in the core; all mutations
// are applied atomically under the lock and no I/O ever happens inside the
// critical section.
type Registry struct {
	mu          sync.RWMutex
	sinks       map[domain.ConnectionID]contract.EventSink
	roomMembers map[domain.RoomID]connSet
	joinedRooms map[domain.ConnectionID]roomSet
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:       make(map[domain.ConnectionID]contract.EventSink),
		roomMembers: make(map[domain.RoomID]connSet),
		joinedRooms: make(map[domain.ConnectionID]roomSet),
	}
}

// Register records the delivery sink of a live connection. It must be called
// before the first Join so broadcasts can resolve members to sinks.
func (r *Registry) Register(connID domain.ConnectionID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connID] = sink
}

// Join subscribes a connection to a room. Joining a room already joined is
// a no-op, not an error.
func (r *Registry) Join(connID domain.ConnectionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(connSet)
	}
	r.roomMembers[roomID][connID] = struct{}{}

	if _, ok := r.joinedRooms[connID]; !ok {
		r.joinedRooms[connID] = make(roomSet)
	}
	r.joinedRooms[connID][roomID] = struct{}{}
}

// Leave unsubscribes a connection from a room. Leaving a room not joined is
// a no-op. Empty index entries are pruned to avoid leaks over time.
func (r *Registry) Leave(connID domain.ConnectionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, roomID)
}

// RemoveConnection removes the connection from every room it joined and
// drops its sink. Safe to call for a connection that joined zero rooms, and
// safe to call more than once.
func (r *Registry) RemoveConnection(connID domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.joinedRooms[connID] {
		r.leaveLocked(connID, roomID)
	}
	delete(r.sinks, connID)
}

func (r *Registry) leaveLocked(connID domain.ConnectionID, roomID domain.RoomID) {
	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
	if rooms, ok := r.joinedRooms[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.joinedRooms, connID)
		}
	}
}

// MembersOf returns a point-in-time snapshot of the room's members. The
// slice is caller-owned; mutating it never touches the registry.
func (r *Registry) MembersOf(roomID domain.RoomID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	snapshot := make([]domain.ConnectionID, 0, len(members))
	for connID := range members {
		snapshot = append(snapshot, connID)
	}
	return snapshot
}

// SinksForRoom resolves the room's member snapshot into delivery sinks.
// A member whose sink was already dropped is silently skipped: it is about
// to complete RemoveConnection anyway.
func (r *Registry) SinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connID := range members {
		if sink, exists := r.sinks[connID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}
