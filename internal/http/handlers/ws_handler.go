package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/auth"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/events"
	"go.uber.org/zap"
)

// WSHub pushes ledger and campaign events to the account they concern.
// Events without a recipient are not forwarded.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[uuid.UUID][]*wsClient
}

type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsClient serialises writes to one connection; each subscribed stream
// delivers from its own goroutine.
type wsClient struct {
	mu   sync.Mutex
	conn messageWriter
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[uuid.UUID][]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	for _, stream := range []string{events.StreamLedger, events.StreamCampaigns} {
		if err := h.subscriber.Subscribe(ctx, stream, h.route); err != nil {
			h.log.Error("ws subscribe failed", zap.String("stream", stream), zap.Error(err))
		}
	}
}

func (h *WSHub) route(event events.Event) {
	id, err := uuid.Parse(event.Recipient())
	if err != nil {
		return
	}
	h.SendToUser(id, event)
}

func (h *WSHub) SendToUser(userID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := append([]*wsClient(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Debug("ws write failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
}

func (h *WSHub) register(userID uuid.UUID, conn messageWriter) *wsClient {
	c := &wsClient{conn: conn}
	h.mu.Lock()
	h.connections[userID] = append(h.connections[userID], c)
	h.mu.Unlock()
	return c
}

func (h *WSHub) unregister(userID uuid.UUID, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.connections[userID]
	for i, c := range clients {
		if c == client {
			h.connections[userID] = append(clients[:i:i], clients[i+1:]...)
			break
		}
	}
	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
	}
}

func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleWS authenticates with the token query parameter since browsers
// cannot set headers on the upgrade request.
func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	userID := claims.UserID
	client := h.register(userID, conn)
	defer func() {
		h.unregister(userID, client)
		conn.Close()
	}()

	// Reads only detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
