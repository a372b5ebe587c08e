package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"chat-relay/repositories"
)

// apiResponse is the envelope every HTTP handler answers with.
type apiResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type messagePayload struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type roomPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type userPayload struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Picture    string    `json:"picture,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type searchHitPayload struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

type loginPayload struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

type messagesPage struct {
	Messages []messagePayload `json:"messages"`
	Cursor   *string          `json:"cursor,omitempty"`
}

func toMessagePayload(m domain.Message) messagePayload {
	return messagePayload{
		ID:        m.ID.String(),
		RoomID:    string(m.Room),
		SenderID:  m.SenderID,
		Content:   m.Content,
		Lang:      m.Lang,
		CreatedAt: m.CreatedAt,
	}
}

func toRoomPayload(r domain.Room) roomPayload {
	return roomPayload{ID: string(r.ID), Name: r.Name, CreatedAt: r.CreatedAt}
}

func toUserPayload(u domain.User) userPayload {
	return userPayload{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Picture:    u.Picture,
		Active:     u.Active,
		CreatedAt:  u.CreatedAt,
		LastSeenAt: u.LastSeenAt,
	}
}

func toSearchHitPayload(h repositories.SearchHit) searchHitPayload {
	return searchHitPayload{ID: h.ID, Author: h.Author, Content: h.Content}
}

func toMessagePayloads(messages []domain.Message) []messagePayload {
	return lo.Map(messages, func(m domain.Message, _ int) messagePayload {
		return toMessagePayload(m)
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Status: status, Data: data}); err != nil {
		s.log.Error("Encoding response", slog.Any("error", err))
	}
}

func (s *Server) respondMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Status: status, Message: message}); err != nil {
		s.log.Error("Encoding response", slog.Any("error", err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		s.respondMessage(w, http.StatusBadRequest, validationErrs.Error())
		return
	}
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", slog.Any("error", err))
		s.respondMessage(w, status, "internal error")
		return
	}
	s.respondMessage(w, status, err.Error())
}
