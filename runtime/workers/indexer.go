package workers

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/repositories"
)

// Compile-time check of the architectural contract.
var _ contract.Worker = (*IndexWorker)(nil)

// IndexWorker feeds the full-text index from persisted-message events.
// Indexing is strictly after-the-fact: a lost event or a failed index write
// degrades search, never durability.
type IndexWorker struct {
	search repositories.ISearchRepository
	events <-chan event.DomainEvent
	log    *slog.Logger
}

func NewIndexWorker(search repositories.ISearchRepository,
	events <-chan event.DomainEvent, log *slog.Logger) *IndexWorker {
	return &IndexWorker{search: search, events: events, log: log}
}

func (w *IndexWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.events:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			posted, ok := e.(event.MessagePosted)
			if !ok {
				continue
			}
			if err := w.search.Index(posted.Message); err != nil {
				w.log.Error("failed to index message",
					"message_id", posted.Message.ID,
					"room_id", posted.Message.Room,
					"error", err)
			}
		}
	}
}
