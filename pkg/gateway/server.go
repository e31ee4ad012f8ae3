package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/haeun/whatif/internal/observability"
)

// Server accepts WebSocket consumers and keeps them subscribed to
// session-state events. Clients authenticate with a shared secret passed
// in the X-Gateway-Secret header.
type Server struct {
	host        string
	port        int
	secret      string
	logger      zerolog.Logger
	upgrader    websocket.Upgrader
	clients     *ClientRegistry
	broadcaster *EventBroadcaster
	httpServer  *http.Server
}

// NewServer creates a gateway server.
func NewServer(host string, port int, secret string, logger zerolog.Logger) *Server {
	clients := NewClientRegistry()
	return &Server{
		host:   host,
		port:   port,
		secret: secret,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients:     clients,
		broadcaster: NewEventBroadcaster(clients, logger),
	}
}

// Broadcaster returns the event broadcaster for this server.
func (s *Server) Broadcaster() *EventBroadcaster {
	return s.broadcaster
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", observability.Handler())

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server and disconnects all clients.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, client := range s.clients.All() {
		client.Conn.Close()
		s.clients.Remove(client.ID)
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.secret != "" && r.Header.Get("X-Gateway-Secret") != s.secret {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := &Client{
		ID:          clientID,
		Conn:        conn,
		ConnectedAt: time.Now(),
	}
	s.clients.Add(client)

	s.logger.Info().
		Str("client_id", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Gateway client connected")

	go s.readLoop(client)
}

// readLoop drains inbound frames so pings are answered; the gateway has
// no client-to-server protocol beyond that.
func (s *Server) readLoop(client *Client) {
	defer func() {
		client.Conn.Close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("client_id", client.ID).Msg("Gateway client disconnected")
	}()

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
