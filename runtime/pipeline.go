package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
)

// Pipeline orchestrates receive, validate, persist, broadcast for one
// inbound message. Its central invariant is durability before visibility:
// a message that failed to persist is never broadcast, so a client can
// never observe a message that is not durably recorded.
type Pipeline struct {
	log              *slog.Logger
	rooms            repositories.IRoomRepository
	messages         repositories.IMessageRepository
	broadcaster      contract.IBroadcaster
	moderator        *moderation.Moderator
	monitoring       *observability.Monitoring
	indexEvents      chan<- event.DomainEvent
	telemetryEvents  chan<- event.DomainEvent
	maxContentLength int
}

func NewPipeline(log *slog.Logger, rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository, broadcaster contract.IBroadcaster,
	moderator *moderation.Moderator, monitoring *observability.Monitoring,
	indexEvents, telemetryEvents chan<- event.DomainEvent,
	maxContentLength int) *Pipeline {
	return &Pipeline{
		log:              log,
		rooms:            rooms,
		messages:         messages,
		broadcaster:      broadcaster,
		moderator:        moderator,
		monitoring:       monitoring,
		indexEvents:      indexEvents,
		telemetryEvents:  telemetryEvents,
		maxContentLength: maxContentLength,
	}
}

// Submit validates, censors, persists and then broadcasts one message.
// Validation and persistence errors are returned to the caller; broadcast
// outcomes never change the result, the message is already durable and will
// surface through history even if live delivery missed some members.
//
// Sending does not require the sender to be a member of the room.
func (p *Pipeline) Submit(ctx context.Context, roomID domain.RoomID, senderID, content string) (domain.Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return domain.Message{}, apperrors.ErrEmptyContent
	}
	if p.maxContentLength > 0 && len([]rune(trimmed)) > p.maxContentLength {
		return domain.Message{}, apperrors.ErrContentTooLong
	}

	exists, err := p.rooms.Exists(roomID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", apperrors.ErrPersistence, err)
	}
	if !exists {
		return domain.Message{}, apperrors.ErrRoomNotFound
	}

	message := p.buildMessage(roomID, senderID, trimmed)

	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if err := p.messages.StoreMessage(message); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", apperrors.ErrPersistence, err)
	}
	p.monitoring.IncrMessagesPosted()

	posted := event.MessagePosted{Message: message}
	p.broadcaster.Broadcast(ctx, posted)
	p.emit(p.indexEvents, posted)
	p.emit(p.telemetryEvents, posted)

	return message, nil
}

// buildMessage assigns identity and timestamp, censors the content and tags
// the detected language. Timestamps come from this pipeline instance, which
// keeps per-room ordering as good as the store's insertion order.
func (p *Pipeline) buildMessage(roomID domain.RoomID, senderID, content string) domain.Message {
	censored, hits := p.moderator.Censor(content)
	if len(hits) > 0 {
		p.monitoring.AddCensorHits(len(hits))
		p.log.Debug("content censored", "room_id", roomID, "hits", len(hits))
	}

	info := whatlanggo.Detect(censored)

	return domain.Message{
		ID:        uuid.New(),
		Room:      roomID,
		SenderID:  senderID,
		Content:   censored,
		Lang:      info.Lang.Iso6391(),
		CreatedAt: time.Now().UTC(),
	}
}

// emit is a best-effort, non-blocking hand-off to an async worker channel.
// A full channel means the consumer lags; the event is dropped and counted,
// durability is unaffected.
func (p *Pipeline) emit(ch chan<- event.DomainEvent, e event.DomainEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- e:
	default:
		p.monitoring.IncrDroppedEvents()
		p.log.Debug("async event dropped", "room_id", e.RoomID())
	}
}
