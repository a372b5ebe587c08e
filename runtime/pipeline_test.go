package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
)

type fakeRoomRepository struct {
	rooms     map[domain.RoomID]domain.Room
	existsErr error
}

func (r *fakeRoomRepository) CreateRoom(room domain.Room) error {
	r.rooms[room.ID] = room
	return nil
}

func (r *fakeRoomRepository) GetRoom(id domain.RoomID) (domain.Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return domain.Room{}, apperrors.ErrRoomNotFound
	}
	return room, nil
}

func (r *fakeRoomRepository) ListRooms() ([]domain.Room, error) {
	var rooms []domain.Room
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (r *fakeRoomRepository) Exists(id domain.RoomID) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	_, ok := r.rooms[id]
	return ok, nil
}

type fakeMessageRepository struct {
	mu       sync.Mutex
	stored   []domain.Message
	storeErr error
}

func (r *fakeMessageRepository) StoreMessage(message domain.Message) error {
	if r.storeErr != nil {
		return r.storeErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, message)
	return nil
}

func (r *fakeMessageRepository) GetMessages(_ domain.RoomID, _ *string) ([]domain.Message, *string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.stored...), nil, nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, e event.DomainEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBroadcaster) Events() []event.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]event.DomainEvent(nil), b.events...)
}

type pipelineFixture struct {
	pipeline    *Pipeline
	rooms       *fakeRoomRepository
	messages    *fakeMessageRepository
	broadcaster *recordingBroadcaster
	indexEvents chan event.DomainEvent
}

func newPipelineFixture(t *testing.T, maxContentLength int) pipelineFixture {
	t.Helper()
	log := internal.GetLoggerFromString("error")

	moderator, err := moderation.NewModerator([]string{"blast"}, '*')
	require.NoError(t, err)

	rooms := &fakeRoomRepository{rooms: map[domain.RoomID]domain.Room{
		"general": {ID: "general", Name: "General", CreatedAt: time.Now().UTC()},
	}}
	messages := &fakeMessageRepository{}
	broadcaster := &recordingBroadcaster{}
	indexEvents := make(chan event.DomainEvent, 4)

	pipeline := NewPipeline(log, rooms, messages, broadcaster, &moderator,
		observability.NewMonitoring(), indexEvents, nil, maxContentLength)

	return pipelineFixture{
		pipeline:    pipeline,
		rooms:       rooms,
		messages:    messages,
		broadcaster: broadcaster,
		indexEvents: indexEvents,
	}
}

func TestPipeline_Submit_Persists_Then_Broadcasts(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t, 0)

	// When a valid message is submitted
	message, err := f.pipeline.Submit(context.Background(), "general", "alice", "hello world")

	// Then it carries identity, timestamp and room
	req.NoError(err)
	req.NotEqual("", message.ID.String())
	req.Equal(domain.RoomID("general"), message.Room)
	req.Equal("alice", message.SenderID)
	req.Equal("hello world", message.Content)
	req.False(message.CreatedAt.IsZero())

	// And it was persisted before being broadcast
	req.Len(f.messages.stored, 1)
	req.Len(f.broadcaster.Events(), 1)
	posted, ok := f.broadcaster.Events()[0].(event.MessagePosted)
	req.True(ok)
	req.Equal(message.ID, posted.Message.ID)

	// And the index worker channel received the event
	req.Len(f.indexEvents, 1)
}

func TestPipeline_Submit_Rejects_Whitespace_Content(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t, 0)

	// When the content is only whitespace
	_, err := f.pipeline.Submit(context.Background(), "general", "alice", "   \t\n  ")

	// Then nothing was persisted and nothing broadcast
	req.ErrorIs(err, apperrors.ErrEmptyContent)
	req.Empty(f.messages.stored)
	req.Empty(f.broadcaster.Events())
}

func TestPipeline_Submit_Rejects_Oversized_Content(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t, 10)

	// When the content exceeds the limit in runes
	_, err := f.pipeline.Submit(context.Background(), "general", "alice", strings.Repeat("é", 11))

	// Then
	req.ErrorIs(err, apperrors.ErrContentTooLong)
	req.Empty(f.messages.stored)
}

func TestPipeline_Submit_Accepts_Content_At_The_Limit(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t, 10)

	// When the content is exactly the limit in runes
	_, err := f.pipeline.Submit(context.Background(), "general", "alice", strings.Repeat("é", 10))

	// Then
	req.NoError(err)
	req.Len(f.messages.stored, 1)
}

func TestPipeline_Submit_Unknown_Room_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t, 0)

	// When the room does not exist
	_, err := f.pipeline.Submit(context.Background(), "nowhere", "alice", "hello")

	// Then
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
	req.Empty(f.messages.stored)
	req.Empty(f.broadcaster.Events())
}

func TestPipeline_Submit_Persistence_Failure_Prevents_Broadcast(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t, 0)
	f.messages.storeErr = fmt.Errorf("disk full")

	// When the store rejects the write
	_, err := f.pipeline.Submit(context.Background(), "general", "alice", "hello")

	// Then the error wraps the persistence sentinel and no client ever
	// observed the message
	req.ErrorIs(err, apperrors.ErrPersistence)
	req.Empty(f.broadcaster.Events())
	req.Empty(f.indexEvents)
}

func TestPipeline_Submit_Room_Lookup_Failure_Is_A_Persistence_Error(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t, 0)
	f.rooms.existsErr = fmt.Errorf("store closed")

	// When the room existence check itself fails
	_, err := f.pipeline.Submit(context.Background(), "general", "alice", "hello")

	// Then the failure is reported as persistence, not as a missing room
	req.ErrorIs(err, apperrors.ErrPersistence)
	req.NotErrorIs(err, apperrors.ErrRoomNotFound)
}

func TestPipeline_Submit_Censors_Content_Before_Anyone_Sees_It(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t, 0)

	// When the content contains a censored word
	message, err := f.pipeline.Submit(context.Background(), "general", "alice", "what a blast today")

	// Then the stored and the broadcast copies are both censored
	req.NoError(err)
	req.NotContains(message.Content, "blast")
	req.Contains(message.Content, "*****")
	req.Equal(message.Content, f.messages.stored[0].Content)
	posted := f.broadcaster.Events()[0].(event.MessagePosted)
	req.Equal(message.Content, posted.Message.Content)
}

func TestPipeline_Submit_Canceled_Context_Skips_Persistence(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When the caller is already gone
	_, err := f.pipeline.Submit(ctx, "general", "alice", "hello")

	// Then
	req.ErrorIs(err, context.Canceled)
	req.Empty(f.messages.stored)
	req.Empty(f.broadcaster.Events())
}

func TestPipeline_Submit_Full_Async_Channel_Does_Not_Block(t *testing.T) {
	req := require.New(t)
	log := internal.GetLoggerFromString("error")
	moderator, err := moderation.NewModerator([]string{"blast"}, '*')
	req.NoError(err)

	rooms := &fakeRoomRepository{rooms: map[domain.RoomID]domain.Room{
		"general": {ID: "general", Name: "General"},
	}}
	full := make(chan event.DomainEvent) // unbuffered, no consumer
	pipeline := NewPipeline(log, rooms, &fakeMessageRepository{}, &recordingBroadcaster{},
		&moderator, observability.NewMonitoring(), full, nil, 0)

	// When the index channel cannot take the event
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := pipeline.Submit(context.Background(), "general", "alice", "hello")
		req.NoError(err)
	}()

	// Then Submit still returns promptly
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a full async channel")
	}
}
