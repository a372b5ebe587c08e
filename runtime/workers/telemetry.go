package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

var _ contract.Worker = (*TelemetryWorker)(nil)

// TelemetryWorker observes the pipeline's lead time per message: the delay
// between the timestamp assigned at submit and the moment the event reaches
// this worker. It only logs; counters live in observability.
type TelemetryWorker struct {
	log              *slog.Logger
	events           <-chan event.DomainEvent
	latencyThreshold time.Duration
}

func NewTelemetryWorker(log *slog.Logger, events <-chan event.DomainEvent,
	latencyThreshold time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, events: events, latencyThreshold: latencyThreshold}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.events:
			if !ok {
				return nil
			}
			posted, ok := e.(event.MessagePosted)
			if !ok {
				continue
			}
			leadTime := time.Since(posted.Message.CreatedAt)
			w.log.Debug("telemetry: processing latency",
				"room_id", posted.Message.Room,
				"author", posted.Message.SenderID,
				"lead_time_ms", leadTime.Milliseconds(),
			)
			if leadTime > w.latencyThreshold {
				w.log.Warn("high latency detected", "lead_time", leadTime)
			}
		}
	}
}
