package runtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/internal"
	"chat-relay/observability"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

type failingSink struct{}

func (s failingSink) Consume(_ context.Context, _ event.DomainEvent) error {
	return fmt.Errorf("sink unavailable")
}

type blockingSink struct{}

func (s blockingSink) Consume(ctx context.Context, _ event.DomainEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

func postedEvent(roomID domain.RoomID) event.MessagePosted {
	return event.MessagePosted{Message: domain.Message{
		ID:        uuid.New(),
		Room:      roomID,
		SenderID:  uuid.NewString(),
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	}}
}

func TestBroadcaster_Delivers_To_All_Members(t *testing.T) {
	req := require.New(t)
	log := internal.GetLoggerFromString("error")
	registry := NewRegistry()
	monitoring := observability.NewMonitoring()
	broadcaster := NewBroadcaster(log, registry, monitoring, time.Second)
	roomID := domain.RoomID("general")

	sink1 := &recordingSink{}
	sink2 := &recordingSink{}
	connID1 := domain.ConnectionID(uuid.NewString())
	connID2 := domain.ConnectionID(uuid.NewString())
	registry.Register(connID1, sink1)
	registry.Register(connID2, sink2)
	registry.Join(connID1, roomID)
	registry.Join(connID2, roomID)

	// When an event is broadcast to the room
	broadcaster.Broadcast(context.Background(), postedEvent(roomID))

	// Then every member received it exactly once
	req.Len(sink1.Events(), 1)
	req.Len(sink2.Events(), 1)
}

func TestBroadcaster_Does_Not_Deliver_To_Other_Rooms(t *testing.T) {
	req := require.New(t)
	log := internal.GetLoggerFromString("error")
	registry := NewRegistry()
	broadcaster := NewBroadcaster(log, registry, observability.NewMonitoring(), time.Second)

	member := &recordingSink{}
	bystander := &recordingSink{}
	memberID := domain.ConnectionID(uuid.NewString())
	bystanderID := domain.ConnectionID(uuid.NewString())
	registry.Register(memberID, member)
	registry.Register(bystanderID, bystander)
	registry.Join(memberID, domain.RoomID("general"))
	registry.Join(bystanderID, domain.RoomID("random"))

	// When an event targets one room
	broadcaster.Broadcast(context.Background(), postedEvent(domain.RoomID("general")))

	// Then only that room's member received it
	req.Len(member.Events(), 1)
	req.Empty(bystander.Events())
}

func TestBroadcaster_One_Failing_Sink_Does_Not_Block_Others(t *testing.T) {
	req := require.New(t)
	log := internal.GetLoggerFromString("error")
	registry := NewRegistry()
	monitoring := observability.NewMonitoring()
	broadcaster := NewBroadcaster(log, registry, monitoring, time.Second)
	roomID := domain.RoomID("general")

	healthy := &recordingSink{}
	failingID := domain.ConnectionID(uuid.NewString())
	healthyID := domain.ConnectionID(uuid.NewString())
	registry.Register(failingID, failingSink{})
	registry.Register(healthyID, healthy)
	registry.Join(failingID, roomID)
	registry.Join(healthyID, roomID)

	// When the broadcast hits a failing sink
	broadcaster.Broadcast(context.Background(), postedEvent(roomID))

	// Then the healthy sink still received the event and the failure was
	// counted as a dropped delivery
	req.Len(healthy.Events(), 1)
	req.EqualValues(1, monitoring.Snapshot()["DroppedDeliveries"])
}

func TestBroadcaster_Slow_Sink_Is_Bounded_By_Timeout(t *testing.T) {
	req := require.New(t)
	log := internal.GetLoggerFromString("error")
	registry := NewRegistry()
	broadcaster := NewBroadcaster(log, registry, observability.NewMonitoring(), 50*time.Millisecond)
	roomID := domain.RoomID("general")

	connID := domain.ConnectionID(uuid.NewString())
	registry.Register(connID, blockingSink{})
	registry.Join(connID, roomID)

	// When the only sink never consumes
	start := time.Now()
	broadcaster.Broadcast(context.Background(), postedEvent(roomID))

	// Then the broadcast returns once the per-sink deadline expires
	req.Less(time.Since(start), time.Second)
}

func TestBroadcaster_Permanent_Sinks_Receive_Every_Event(t *testing.T) {
	req := require.New(t)
	log := internal.GetLoggerFromString("error")
	registry := NewRegistry()
	broadcaster := NewBroadcaster(log, registry, observability.NewMonitoring(), time.Second)

	permanent := &recordingSink{}
	broadcaster.Add(permanent)

	// When events target rooms with no members at all
	broadcaster.Broadcast(context.Background(), postedEvent(domain.RoomID("general")))
	broadcaster.Broadcast(context.Background(), postedEvent(domain.RoomID("random")))

	// Then the permanent sink saw both
	req.Len(permanent.Events(), 2)
}

// joinDuringConsume subscribes another sink to the room from inside its own
// delivery, modelling a connection that joins while a broadcast is in flight.
type joinDuringConsume struct {
	registry *Registry
	connID   domain.ConnectionID
	sink     *recordingSink
}

func (s *joinDuringConsume) Consume(_ context.Context, e event.DomainEvent) error {
	s.registry.Register(s.connID, s.sink)
	s.registry.Join(s.connID, e.RoomID())
	return nil
}

func TestBroadcaster_Member_Snapshot_Is_Taken_Before_Permanent_Delivery(t *testing.T) {
	req := require.New(t)
	log := internal.GetLoggerFromString("error")
	registry := NewRegistry()
	broadcaster := NewBroadcaster(log, registry, observability.NewMonitoring(), time.Second)
	roomID := domain.RoomID("general")

	// Given a permanent sink that joins a latecomer mid-broadcast. The
	// join-time replay snapshots the timeline before joining, which is only
	// duplicate-free if the member set is fixed before permanent sinks
	// (the timeline among them) consume the event.
	late := &recordingSink{}
	broadcaster.Add(&joinDuringConsume{
		registry: registry,
		connID:   domain.ConnectionID(uuid.NewString()),
		sink:     late,
	})

	// When an event is broadcast while the latecomer joins
	broadcaster.Broadcast(context.Background(), postedEvent(roomID))

	// Then the in-flight event skips the latecomer
	req.Empty(late.Events())

	// And the next broadcast reaches it
	broadcaster.Broadcast(context.Background(), postedEvent(roomID))
	req.Len(late.Events(), 1)
}
