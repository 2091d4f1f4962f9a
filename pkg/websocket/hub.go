package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"learnhub/pkg/logger"
)

// Message represents the standard message format exchanged over WebSocket.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Authenticator resolves the token a client connects with to a user id.
type Authenticator interface {
	ParseToken(token string) (uint, error)
}

// MessageHandler receives inbound messages whose type starts with the prefix
// it was registered under.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID uint, msg Message)
}

type MessageHandlerFunc func(ctx context.Context, userID uint, msg Message)

func (f MessageHandlerFunc) HandleMessage(ctx context.Context, userID uint, msg Message) {
	f(ctx, userID, msg)
}

// Hub tracks connected clients per user and routes messages both ways.
type Hub struct {
	auth       Authenticator
	upgrader   websocket.Upgrader
	clients    map[*Client]bool
	byUser     map[uint]map[*Client]bool
	handlers   map[string]MessageHandler
	disconnect []func(userID uint)
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub(auth Authenticator, allowedOrigins []string) *Hub {
	return &Hub{
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		clients:    make(map[*Client]bool),
		byUser:     make(map[uint]map[*Client]bool),
		handlers:   make(map[string]MessageHandler),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// Handle registers h for inbound messages whose type starts with prefix.
// It must be called before Run.
func (h *Hub) Handle(prefix string, handler MessageHandler) {
	h.handlers[prefix] = handler
}

// OnDisconnect registers fn to run once a user's last connection is gone.
// It must be called before Run.
func (h *Hub) OnDisconnect(fn func(userID uint)) {
	h.disconnect = append(h.disconnect, fn)
}

type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
}

func encode(messageType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: messageType, Data: raw})
}

// SendToUser queues a message for every connection the user has open.
func (h *Hub) SendToUser(userID uint, messageType string, data interface{}) {
	messageBytes, err := encode(messageType, data)
	if err != nil {
		logger.Log.Error("marshal websocket message", zap.String("type", messageType), zap.Error(err))
		return
	}

	// Sends happen under the read lock so Run cannot close a channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.byUser[userID]
	if len(clients) == 0 {
		logger.Log.Debug("no active client for user", zap.Uint("user_id", userID), zap.String("type", messageType))
		return
	}

	for c := range clients {
		select {
		case c.send <- messageBytes:
		default:
			logger.Log.Warn("send channel full, dropping client", zap.String("client", c.id), zap.Uint("user_id", userID))
			go h.drop(c)
		}
	}
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Connected reports how many connections the user has open.
func (h *Hub) Connected(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// Run listens on the register and unregister channels until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.byUser[client.userID] == nil {
				h.byUser[client.userID] = make(map[*Client]bool)
			}
			h.byUser[client.userID][client] = true
			h.mu.Unlock()
			logger.Log.Info("client connected", zap.String("client", client.id), zap.Uint("user_id", client.userID))

		case client := <-h.unregister:
			last := false
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				delete(h.byUser[client.userID], client)
				if len(h.byUser[client.userID]) == 0 {
					delete(h.byUser, client.userID)
					last = true
				}
				close(client.send)
				logger.Log.Info("client disconnected", zap.String("client", client.id), zap.Uint("user_id", client.userID))
			}
			h.mu.Unlock()
			if last {
				for _, fn := range h.disconnect {
					fn(client.userID)
				}
			}

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]bool)
			h.byUser = make(map[uint]map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// HandleWebSocket authenticates the token query parameter, upgrades the
// connection and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	userID, err := h.auth.ParseToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) dispatch(userID uint, msg Message) {
	for prefix, handler := range h.handlers {
		if strings.HasPrefix(msg.Type, prefix) {
			handler.HandleMessage(context.Background(), userID, msg)
			return
		}
	}
	logger.Log.Debug("unhandled websocket message", zap.String("type", msg.Type), zap.Uint("user_id", userID))
}

// readPump continuously reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("unexpected close", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Log.Debug("bad websocket message", zap.String("client", c.id), zap.Error(err))
			continue
		}
		c.hub.dispatch(c.userID, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Log.Debug("write failed", zap.String("client", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
