// Package server is the request gateway: the HTTP API and the websocket
// endpoint that owns connection lifecycles. It translates external requests
// into service calls and wraps results in a status-coded envelope.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"chat-relay/auth"
	"chat-relay/observability"
	"chat-relay/services"
)

type Config struct {
	Addr                 string
	AllowedOrigins       []string
	ConnectionBufferSize int
}

type Server struct {
	log        *slog.Logger
	cfg        Config
	chat       services.IChatService
	users      services.IUserService
	accounts   services.IAuthService
	tokens     *auth.TokenManager
	monitoring *observability.Monitoring
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

func New(log *slog.Logger, cfg Config, chat services.IChatService,
	users services.IUserService, accounts services.IAuthService,
	tokens *auth.TokenManager, monitoring *observability.Monitoring) *Server {
	s := &Server{
		log:        log,
		cfg:        cfg,
		chat:       chat,
		users:      users,
		accounts:   accounts,
		tokens:     tokens,
		monitoring: monitoring,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy is enforced by the cors layer on the API;
				// the websocket endpoint authenticates via token instead.
				return true
			},
		},
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the full route table. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)
	protected.HandleFunc("/rooms", s.handleListRooms).Methods(http.MethodGet)
	protected.HandleFunc("/rooms", s.handleCreateRoom).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{id}/messages", s.handleRoomMessages).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{id}/search", s.handleSearchMessages).Methods(http.MethodGet)
	protected.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	protected.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	protected.HandleFunc("/users/{id}", s.handleGetUser).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", s.handleUpdateUser).Methods(http.MethodPut)
	protected.HandleFunc("/users/{id}", s.handleDeleteUser).Methods(http.MethodDelete)

	r.HandleFunc("/ws", s.handleWebsocket)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
