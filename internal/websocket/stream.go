package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"xpert-backend/internal/middleware"
	"xpert-backend/internal/models"
	"xpert-backend/internal/services"
)

// Frames carry a whole chat request, inline image included.
const maxFrameBytes = 25 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type chatGateway interface {
	HandleChatRequest(ctx context.Context, req *models.ChatRequest, image *models.Attachment) (*models.ChatResponse, error)
}

type frameLimiter interface {
	Allow(ctx context.Context, key string) bool
}

const rateLimitedReply = "ERROR: Too many requests. Please try again later."

// ChatStream serves chat completions over a websocket: one ChatRequest per
// text frame in, one ChatResponse per frame out. Every frame is charged to
// the client's rate limit, not just the upgrade.
type ChatStream struct {
	mu          sync.Mutex
	gateway     chatGateway
	limiter     frameLimiter
	connections map[*websocket.Conn]string
}

// NewChatStream accepts a nil limiter, which leaves frames unlimited.
func NewChatStream(gateway chatGateway, limiter frameLimiter) *ChatStream {
	return &ChatStream{
		gateway:     gateway,
		limiter:     limiter,
		connections: make(map[*websocket.Conn]string),
	}
}

// HandleWebSocket expects authentication to have run already; the JWT
// middleware accepts ?token= for browsers that cannot set headers.
func (s *ChatStream) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	subject := middleware.GetSubject(r.Context())
	clientKey := middleware.ClientIP(r)
	s.register(conn, subject)
	defer s.unregister(conn)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		resp := s.reply(r.Context(), clientKey, data)
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("WebSocket write failed: %v", err)
			return
		}
	}
}

func (s *ChatStream) reply(ctx context.Context, clientKey string, frame []byte) *models.ChatResponse {
	if s.limiter != nil && !s.limiter.Allow(ctx, clientKey) {
		return services.NewChatResponse("", rateLimitedReply)
	}

	var req models.ChatRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return services.InvalidChatResponse(err)
	}

	resp, err := s.gateway.HandleChatRequest(ctx, &req, req.Attachment())
	if err != nil {
		return services.InvalidChatResponse(err)
	}
	return resp
}

// Active reports the number of open connections.
func (s *ChatStream) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// CloseAll sends a close frame to every client, used on shutdown.
func (s *ChatStream) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range s.connections {
		conn.WriteMessage(websocket.CloseMessage, msg)
		conn.Close()
	}
}

func (s *ChatStream) register(conn *websocket.Conn, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections[conn] = subject
	log.Printf("WebSocket connected: subject %q (total: %d)", subject, len(s.connections))
}

func (s *ChatStream) unregister(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn.Close()
	subject := s.connections[conn]
	delete(s.connections, conn)
	log.Printf("WebSocket disconnected: subject %q", subject)
}
