//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"strings"

	"chat-relay/contract"
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
)

type IChatService interface {
	PostMessage(ctx context.Context, roomID domain.RoomID, senderID, content string) (domain.Message, error)
	GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	SearchMessages(ctx context.Context, roomID domain.RoomID, terms string, limit int) ([]repositories.SearchHit, error)
	ListRooms() ([]domain.Room, error)
	CreateRoom(name string) (domain.Room, error)
	GetRoom(id domain.RoomID) (domain.Room, error)

	Connect(connID domain.ConnectionID, sink contract.EventSink)
	Disconnect(connID domain.ConnectionID)
	JoinRoom(connID domain.ConnectionID, roomID domain.RoomID)
	LeaveRoom(connID domain.ConnectionID, roomID domain.RoomID)
	RecentMessages(roomID domain.RoomID) []domain.Message
}

// ChatService is the facade the gateways talk to. It owns no state of its
// own; it routes between the pipeline, the registry and the repositories.
type ChatService struct {
	pipeline *runtime.Pipeline
	registry contract.IRegistry
	rooms    repositories.IRoomRepository
	messages repositories.IMessageRepository
	search   repositories.ISearchRepository
	timeline *projection.Timeline
}

func NewChatService(pipeline *runtime.Pipeline, registry contract.IRegistry,
	rooms repositories.IRoomRepository, messages repositories.IMessageRepository,
	search repositories.ISearchRepository, timeline *projection.Timeline) *ChatService {
	return &ChatService{
		pipeline: pipeline,
		registry: registry,
		rooms:    rooms,
		messages: messages,
		search:   search,
		timeline: timeline,
	}
}

func (s *ChatService) PostMessage(ctx context.Context, roomID domain.RoomID, senderID, content string) (domain.Message, error) {
	return s.pipeline.Submit(ctx, roomID, senderID, content)
}

func (s *ChatService) GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	return s.messages.GetMessages(roomID, cursor)
}

func (s *ChatService) SearchMessages(ctx context.Context, roomID domain.RoomID, terms string, limit int) ([]repositories.SearchHit, error) {
	return s.search.Search(ctx, roomID, terms, limit)
}

func (s *ChatService) ListRooms() ([]domain.Room, error) {
	return s.rooms.ListRooms()
}

func (s *ChatService) CreateRoom(name string) (domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Room{}, apperrors.ErrRoomNameEmpty
	}
	room := domain.NewRoom(name)
	if err := s.rooms.CreateRoom(room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

func (s *ChatService) GetRoom(id domain.RoomID) (domain.Room, error) {
	return s.rooms.GetRoom(id)
}

func (s *ChatService) Connect(connID domain.ConnectionID, sink contract.EventSink) {
	s.registry.Register(connID, sink)
}

func (s *ChatService) Disconnect(connID domain.ConnectionID) {
	s.registry.RemoveConnection(connID)
}

func (s *ChatService) JoinRoom(connID domain.ConnectionID, roomID domain.RoomID) {
	s.registry.Join(connID, roomID)
}

func (s *ChatService) LeaveRoom(connID domain.ConnectionID, roomID domain.RoomID) {
	s.registry.Leave(connID, roomID)
}

func (s *ChatService) RecentMessages(roomID domain.RoomID) []domain.Message {
	return s.timeline.Recent(roomID)
}
