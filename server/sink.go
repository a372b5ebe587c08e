package server

import (
	"context"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// wsSink buffers events between the broadcaster and a websocket writer. A
// slow client absorbs bursts through the buffer; once the buffer is full the
// broadcaster's delivery deadline bounds how long Consume may block.
type wsSink struct {
	events chan event.DomainEvent
}

var _ contract.EventSink = (*wsSink)(nil)

func newWSSink(buffer int) *wsSink {
	return &wsSink{events: make(chan event.DomainEvent, buffer)}
}

func (s *wsSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.events <- e:
		return nil
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
