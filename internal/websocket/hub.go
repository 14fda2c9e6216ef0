package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/pingbadge/pingbadge-web/internal/auth"
	"github.com/pingbadge/pingbadge-web/internal/logger"
	"github.com/pingbadge/pingbadge-web/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin for development
		// In production, implement proper origin checking
		return true
	},
}

// Event is the wire envelope for pushed messages.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type message struct {
	userID string
	data   []byte
}

// Hub fans gamification updates out to the connected display widgets
// (stats pill, points animation, level-up modal, daily-bonus banner) of
// the owning user.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
}

type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logger.Sugar.Debugw("widget client connected",
				"client_id", client.id, "user_id", client.userID, "total", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.Sugar.Debugw("widget client disconnected",
					"client_id", client.id, "total", len(h.clients))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.userID != msg.userID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// PublishUpdate pushes a gamification update to the user's connected
// widgets. Intended as a Controller subscriber.
func (h *Hub) PublishUpdate(userID string, update models.GamificationUpdate) {
	data, err := json.Marshal(Event{Type: "gamification_update", Payload: update})
	if err != nil {
		logger.Sugar.Warnw("failed to encode gamification update", "error", err)
		return
	}
	h.broadcast <- message{userID: userID, data: data}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Warnw("websocket read error", "client_id", c.id, "error", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Sugar.Warnw("websocket write error", "client_id", c.id, "error", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func handleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromSession(r)
	if userID == "" {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Warnw("websocket upgrade error", "error", err)
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// RegisterRoutes mounts the widget push channel and returns the hub so the
// API layer can feed it.
func RegisterRoutes(r *mux.Router) *Hub {
	hub := NewHub()
	go hub.Run()

	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, w, r)
	})

	return hub
}
