package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/repositories"
)

type fakeSearchRepository struct {
	mu       sync.Mutex
	indexed  []domain.Message
	indexErr error
}

func (r *fakeSearchRepository) Index(message domain.Message) error {
	if r.indexErr != nil {
		return r.indexErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, message)
	return nil
}

func (r *fakeSearchRepository) Search(_ context.Context, _ domain.RoomID, _ string, _ int) ([]repositories.SearchHit, error) {
	return nil, nil
}

func (r *fakeSearchRepository) Close() error { return nil }

func (r *fakeSearchRepository) Indexed() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.indexed...)
}

func TestIndexWorker_Indexes_Posted_Messages(t *testing.T) {
	req := require.New(t)
	search := &fakeSearchRepository{}
	events := make(chan event.DomainEvent, 4)
	worker := NewIndexWorker(search, events, slog.Default())

	message := domain.Message{ID: uuid.New(), Room: "general", Content: "hello"}
	events <- event.MessagePosted{Message: message}
	close(events)

	// When the channel drains and closes, the worker finishes cleanly
	err := worker.Run(context.Background())

	req.NoError(err)
	req.Equal([]domain.Message{message}, search.Indexed())
}

func TestIndexWorker_Index_Failure_Does_Not_Stop_The_Worker(t *testing.T) {
	req := require.New(t)
	search := &fakeSearchRepository{indexErr: fmt.Errorf("index closed")}
	events := make(chan event.DomainEvent, 4)
	worker := NewIndexWorker(search, events, slog.Default())

	events <- event.MessagePosted{Message: domain.Message{ID: uuid.New(), Room: "general"}}
	events <- event.MessagePosted{Message: domain.Message{ID: uuid.New(), Room: "general"}}
	close(events)

	// When every index write fails, the worker still consumes all events
	err := worker.Run(context.Background())

	req.NoError(err)
}

func TestIndexWorker_Stops_On_Context_Cancel(t *testing.T) {
	req := require.New(t)
	worker := NewIndexWorker(&fakeSearchRepository{}, make(chan event.DomainEvent), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		req.Fail("worker did not stop on cancel")
	}
}
