//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself; supervision is the Supervisor's job.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the delivery end of one live connection, or any in-process
// consumer of domain events (timeline projection, tests).
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks which connections are members of which rooms.
// It is the only piece of mutable shared state in the realtime core.
type IRegistry interface {
	Register(connID domain.ConnectionID, sink EventSink)
	Join(connID domain.ConnectionID, roomID domain.RoomID)
	Leave(connID domain.ConnectionID, roomID domain.RoomID)
	RemoveConnection(connID domain.ConnectionID)
	MembersOf(roomID domain.RoomID) []domain.ConnectionID
	SinksForRoom(roomID domain.RoomID) []EventSink
}

// IBroadcaster fans a persisted message out to the current members of a room.
type IBroadcaster interface {
	Broadcast(ctx context.Context, e event.DomainEvent)
}
