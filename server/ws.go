package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/services"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 4096

	replayTimeout = time.Second
)

type inboundFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id,omitempty"`
	Content string `json:"content,omitempty"`
}

type outboundFrame struct {
	Type    string          `json:"type"`
	Message *messagePayload `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// session is one websocket client. Its connection id is opaque and minted at
// upgrade time; it is unrelated to the authenticated user, so one user may
// hold several sessions.
type session struct {
	id         domain.ConnectionID
	userID     string
	conn       *websocket.Conn
	sink       *wsSink
	errs       chan string
	done       chan struct{}
	chat       services.IChatService
	log        *slog.Logger
	monitoring *observability.Monitoring
	closeOnce  sync.Once
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}

	connID := domain.ConnectionID(uuid.NewString())
	sess := &session{
		id:         connID,
		userID:     claims.UserID,
		conn:       conn,
		sink:       newWSSink(s.cfg.ConnectionBufferSize),
		errs:       make(chan string, 8),
		done:       make(chan struct{}),
		chat:       s.chat,
		log:        s.log.With(slog.String("connection_id", string(connID))),
		monitoring: s.monitoring,
	}

	s.chat.Connect(sess.id, sess.sink)
	s.monitoring.ConnectionOpened()
	sess.log.Info("Connection opened", slog.String("user_id", sess.userID))

	go sess.writePump()
	sess.readPump()
}

// teardown runs exactly once per session no matter how the connection dies.
// Removing the connection from the registry is what stops further fan-out to
// this client.
func (s *session) teardown() {
	s.closeOnce.Do(func() {
		s.chat.Disconnect(s.id)
		s.monitoring.ConnectionClosed()
		close(s.done)
		_ = s.conn.Close()
		s.log.Info("Connection closed")
	})
}

func (s *session) readPump() {
	defer s.teardown()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Unexpected close", slog.Any("error", err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.pushError("malformed frame")
			continue
		}
		s.handleFrame(frame)
	}
}

func (s *session) handleFrame(frame inboundFrame) {
	roomID := domain.RoomID(frame.RoomID)

	switch frame.Type {
	case "join":
		if _, err := s.chat.GetRoom(roomID); err != nil {
			s.pushError(err.Error())
			return
		}
		// The timeline snapshot is taken before joining: a message that
		// reaches the timeline after this point is broadcast to a member
		// set that already includes this connection, so it arrives live
		// exactly once instead of both live and replayed.
		recent := s.chat.RecentMessages(roomID)
		s.chat.JoinRoom(s.id, roomID)
		s.replay(recent)
	case "leave":
		s.chat.LeaveRoom(s.id, roomID)
	case "send":
		// Membership is not required to send; moderation and persistence
		// run before anyone sees the message.
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if _, err := s.chat.PostMessage(ctx, roomID, s.userID, frame.Content); err != nil {
			s.pushError(err.Error())
		}
	default:
		s.pushError("unknown frame type")
	}
}

// replay pushes a timeline snapshot through the session's own sink so a
// joiner catches up before live events arrive.
func (s *session) replay(recent []domain.Message) {
	if len(recent) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), replayTimeout)
	defer cancel()
	for _, m := range recent {
		if err := s.sink.Consume(ctx, event.MessagePosted{Message: m}); err != nil {
			s.log.Debug("Replay truncated", slog.Any("error", err))
			return
		}
	}
}

func (s *session) pushError(message string) {
	select {
	case s.errs <- message:
	default:
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.teardown()
	}()

	for {
		select {
		case e := <-s.sink.events:
			posted, ok := e.(event.MessagePosted)
			if !ok {
				continue
			}
			payload := toMessagePayload(posted.Message)
			frame := outboundFrame{Type: "message", Message: &payload}
			if err := s.writeJSON(frame); err != nil {
				return
			}
		case message := <-s.errs:
			if err := s.writeJSON(outboundFrame{Type: "error", Error: message}); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) writeJSON(frame outboundFrame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}
