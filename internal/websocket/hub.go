package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"tasktracker/pkg/logger"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected websocket.
type Client struct {
	Conn   Conn
	UserID int64
	Mu     sync.Mutex
}

// Event is a change to a task, pushed to every connected client.
type Event struct {
	Type   string `json:"type"`
	TaskID int64  `json:"task_id"`
	UserID int64  `json:"user_id,omitempty"`
	Data   any    `json:"data,omitempty"`
}

const (
	EventTaskCreated  = "task.created"
	EventTaskUpdated  = "task.updated"
	EventTaskDeleted  = "task.deleted"
	EventCommentAdded = "comment.added"
	EventAttachment   = "attachment.added"
)

// Hub owns the set of clients. Only Run touches the map.
type Hub struct {
	Clients    map[*Client]bool
	Broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Clients[client] = true
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.Broadcast:
			for client := range h.Clients {
				client.Mu.Lock()
				err := client.Conn.WriteMessage(websocket.TextMessage, message)
				client.Mu.Unlock()
				if err != nil {
					// Sending to Unregister from here would block on ourselves.
					h.remove(client)
				}
			}
		case <-h.done:
			for client := range h.Clients {
				h.remove(client)
			}
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.Clients[client]; ok {
		delete(h.Clients, client)
		client.Conn.Close()
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

// Publish queues an event without blocking the request that caused it.
// When the queue is full the event is dropped.
func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		logger.ErrorLogger.Error("Marshal event", zap.String("type", e.Type), zap.Error(err))
		return
	}
	select {
	case h.Broadcast <- data:
	default:
		logger.SystemLogger.Warn("Event queue full, dropping event", zap.String("type", e.Type))
	}
}

// Serve is the websocket endpoint: it registers the connection and reads
// until the client goes away. Clients only listen.
func (h *Hub) Serve(c *websocket.Conn) {
	userID, _ := c.Locals("userID").(int64)
	client := &Client{Conn: c, UserID: userID}
	select {
	case h.Register <- client:
	case <-h.done:
		return
	}
	defer func() {
		select {
		case h.Unregister <- client:
		case <-h.done:
		}
	}()
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
