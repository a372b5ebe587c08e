package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/repositories"
)

const defaultSearchLimit = 20

type createRoomRequest struct {
	Name string `json:"name"`
}

type updateUserRequest struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Active  *bool  `json:"active"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondMessage(w, http.StatusBadRequest, "malformed body")
		return
	}
	user, err := s.accounts.Register(req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, toUserPayload(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondMessage(w, http.StatusBadRequest, "malformed body")
		return
	}
	token, user, err := s.accounts.Login(req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, loginPayload{Token: token, User: toUserPayload(user)})
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	rooms, err := s.chat.ListRooms()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, lo.Map(rooms, func(r domain.Room, _ int) roomPayload {
		return toRoomPayload(r)
	}))
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondMessage(w, http.StatusBadRequest, "malformed body")
		return
	}
	room, err := s.chat.CreateRoom(req.Name)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, toRoomPayload(room))
}

// handleRoomMessages pages durable history oldest first. The cursor of a
// previous page, passed back verbatim, resumes the scan.
func (s *Server) handleRoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(mux.Vars(r)["id"])

	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}

	messages, next, err := s.chat.GetMessages(roomID, cursor)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, messagesPage{
		Messages: toMessagePayloads(messages),
		Cursor:   next,
	})
}

func (s *Server) handleSearchMessages(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(mux.Vars(r)["id"])
	terms := r.URL.Query().Get("q")
	if terms == "" {
		s.respondMessage(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.respondMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	hits, err := s.chat.SearchMessages(r.Context(), roomID, terms, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, lo.Map(hits, func(h repositories.SearchHit, _ int) searchHitPayload {
		return toSearchHitPayload(h)
	}))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondMessage(w, http.StatusBadRequest, "malformed body")
		return
	}
	user, err := s.users.CreateUser(req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, toUserPayload(user))
}

func (s *Server) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	users, err := s.users.ListUsers()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, lo.Map(users, func(u domain.User, _ int) userPayload {
		return toUserPayload(u)
	}))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUser(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, toUserPayload(user))
}

// handleUpdateUser lets an account edit only itself; the token's subject
// must match the path id.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.authorizeOwner(w, r, id) {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondMessage(w, http.StatusBadRequest, "malformed body")
		return
	}

	user, err := s.users.GetUser(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Picture != "" {
		user.Picture = req.Picture
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := s.users.UpdateUser(user); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, toUserPayload(user))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.authorizeOwner(w, r, id) {
		return
	}
	if err := s.users.DeleteUser(id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondMessage(w, http.StatusOK, "user deleted")
}

// authorizeOwner rejects the request unless the authenticated user is the
// one named by the path. Writes the response itself on failure.
func (s *Server) authorizeOwner(w http.ResponseWriter, r *http.Request, id string) bool {
	claims, ok := claimsFromContext(r.Context())
	if !ok || claims.UserID != id {
		s.respondMessage(w, http.StatusForbidden, "cannot modify another user")
		return false
	}
	return true
}
