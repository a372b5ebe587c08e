package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
)

type testStack struct {
	server   *Server
	http     *httptest.Server
	tokens   *auth.TokenManager
	timeline *projection.Timeline
}

// newTestStack wires the full system against temporary storage, the same
// way the server binary does.
func newTestStack(t *testing.T) *testStack {
	t.Helper()
	req := require.New(t)
	log := internal.GetLoggerFromString("error")

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	search, err := repositories.NewSearchRepository(t.TempDir())
	req.NoError(err)
	t.Cleanup(func() { _ = search.Close() })

	messageRepository := repositories.NewMessageRepository(db, log, nil)
	roomRepository := repositories.NewRoomRepository(db)
	userRepository := repositories.NewUserRepository(db)

	moderator, err := moderation.NewModerator([]string{"scum"}, '*')
	req.NoError(err)

	monitoring := observability.NewMonitoring()
	registry := runtime.NewRegistry()
	timeline := projection.NewTimeline(20)
	broadcaster := runtime.NewBroadcaster(log, registry, monitoring, time.Second)
	broadcaster.Add(timeline)

	pipeline := runtime.NewPipeline(log, roomRepository, messageRepository,
		broadcaster, &moderator, monitoring, make(chan event.DomainEvent, 16), nil, 2000)

	tokens := auth.NewTokenManager([]byte("test-secret"), "chat-relay", time.Hour)
	chatService := services.NewChatService(pipeline, registry, roomRepository,
		messageRepository, search, timeline)
	userService := services.NewUserService(userRepository)
	authService := services.NewAuthService(userRepository, tokens)

	srv := New(log, Config{
		Addr:                 "localhost:0",
		AllowedOrigins:       []string{"*"},
		ConnectionBufferSize: 16,
	}, chatService, userService, authService, tokens, monitoring)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testStack{server: srv, http: ts, tokens: tokens, timeline: timeline}
}

func (s *testStack) do(t *testing.T, method, path, token string, body any) (*http.Response, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	httpReq, err := http.NewRequest(method, s.http.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Client().Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

// register creates an account and returns its login token and user id.
func (s *testStack) register(t *testing.T, email string) (string, string) {
	t.Helper()
	req := require.New(t)

	resp, _ := s.do(t, http.MethodPost, "/api/auth/register", "", auth.RegisterRequest{
		Email:    email,
		Name:     "Test User",
		Password: "ComplexPass123!+",
	})
	req.Equal(http.StatusCreated, resp.StatusCode)

	resp, envelope := s.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{
		Email:    email,
		Password: "ComplexPass123!+",
	})
	req.Equal(http.StatusOK, resp.StatusCode)

	var payload loginPayload
	decodeData(t, envelope, &payload)
	return payload.Token, payload.User.ID
}

// createRoom creates a room through the API and returns its id.
func (s *testStack) createRoom(t *testing.T, token, name string) string {
	t.Helper()
	resp, envelope := s.do(t, http.MethodPost, "/api/rooms", token, createRoomRequest{Name: name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var payload roomPayload
	decodeData(t, envelope, &payload)
	return payload.ID
}

// decodeData re-marshals the envelope's data field into a typed payload.
func decodeData(t *testing.T, envelope apiResponse, out any) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}
