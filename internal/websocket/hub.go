package websocket

import (
	"context"
	"net/http"
	"sync"

	"formintake/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer in front of the API.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one open connection belonging to an identity.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Identity string
	Send     chan []byte
}

type delivery struct {
	recipient string
	payload   []byte
}

// Hub tracks connections per identity and routes messages to them.
// An identity may hold several connections (tabs); each receives a copy.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	deliver    chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		deliver:    make(chan delivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run dispatches events until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.Send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.Identity]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.Identity] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", zap.String("identity", client.Identity))
		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", zap.String("identity", client.Identity))
		case d := <-h.deliver:
			h.mu.Lock()
			for client := range h.clients[d.recipient] {
				select {
				case client.Send <- d.payload:
				default:
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	set, ok := h.clients[client.Identity]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.Identity)
	}
}

// SendTo queues payload for every connection of recipient. It never blocks.
func (h *Hub) SendTo(recipient string, payload []byte) bool {
	select {
	case h.deliver <- delivery{recipient: recipient, payload: payload}:
		return true
	default:
		h.logger.Warn("websocket delivery queue full", zap.String("recipient", recipient))
		return false
	}
}

func (h *Hub) Connected(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identity])
}

func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for message := range c.Send {
		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		_, _ = w.Write(message)

		n := len(c.Send)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte{'\n'})
			_, _ = w.Write(<-c.Send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		_ = c.Conn.Close()
	}()
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("websocket read error", zap.String("identity", c.Identity), zap.Error(err))
			}
			break
		}
	}
}

// ServeWs authenticates the token query parameter and binds the connection to its sub claim.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		hub.logger.Info("websocket connection rejected: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	identity, _ := claims["sub"].(string)
	if identity == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{Hub: hub, Conn: conn, Identity: identity, Send: make(chan []byte, 256)}
	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
