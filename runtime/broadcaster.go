package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// Broadcaster fans a domain event out to every sink subscribed to its room,
// plus the permanent in-process sinks (timeline projection, tests).
//
// Delivery is best-effort: one slow or dead sink never blocks its siblings
// and never fails the call. Sinks are buffered channel enqueues, so the only
// time spent per sink is bounded by sinkTimeout when the buffer is full.
// No ordering guarantee is made between broadcasts of different rooms.
type Broadcaster struct {
	log            *slog.Logger
	registry       contract.IRegistry
	monitoring     *observability.Monitoring
	permanentSinks []contract.EventSink
	sinkTimeout    time.Duration
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry,
	monitoring *observability.Monitoring, sinkTimeout time.Duration) *Broadcaster {
	return &Broadcaster{
		log:         log,
		registry:    registry,
		monitoring:  monitoring,
		sinkTimeout: sinkTimeout,
	}
}

// Add registers permanent sinks consulted on every broadcast regardless of
// room membership.
func (b *Broadcaster) Add(sinks ...contract.EventSink) {
	b.permanentSinks = append(b.permanentSinks, sinks...)
}

// Broadcast delivers the event to the room's member set as of call time.
// The member snapshot is taken inside the registry's critical section; all
// deliveries happen outside of it.
func (b *Broadcaster) Broadcast(ctx context.Context, e event.DomainEvent) {
	sinks := b.registry.SinksForRoom(e.RoomID())
	for _, sink := range b.permanentSinks {
		b.deliver(ctx, sink, e)
	}
	for _, sink := range sinks {
		b.deliver(ctx, sink, e)
	}
}

func (b *Broadcaster) deliver(ctx context.Context, sink contract.EventSink, e event.DomainEvent) {
	deliveryCtx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
	defer cancel()

	if err := sink.Consume(deliveryCtx, e); err != nil {
		// The connection is gone or saturated; the durable write already
		// succeeded, so this is observed and forgotten, never retried.
		b.monitoring.IncrDroppedDeliveries()
		b.log.Debug("delivery failed", "room_id", e.RoomID(), "error", err)
		return
	}
	b.monitoring.IncrDeliveries()
}
