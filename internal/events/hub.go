// Package events fans out admin activity notifications. Handlers publish an
// event when content changes and the hub delivers it to connected WebSocket
// clients and SSE subscribers, so the back-office UI can refresh without
// polling.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types published by the API layer.
const (
	TypePostCreated      = "post.created"
	TypePostUpdated      = "post.updated"
	TypePostDeleted      = "post.deleted"
	TypeCommentCreated   = "comment.created"
	TypeCommentModerated = "comment.moderated"
	TypeCommentDeleted   = "comment.deleted"
	TypeImageUploaded    = "image.uploaded"
	TypeImageDeleted     = "image.deleted"
)

// Topics a client can subscribe to. An event's topic is the segment before
// the dot in its type.
const (
	TopicPosts    = "posts"
	TopicComments = "comments"
	TopicImages   = "images"
)

// Event is the wire shape delivered to both transports.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type subscriptionRequest struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

// StreamMetrics counts live event streams. A nil value disables counting.
type StreamMetrics interface {
	IncrementStreams(ctx context.Context)
	DecrementStreams(ctx context.Context)
}

// Hub routes published events to registered clients.
type Hub struct {
	clients     map[*Client]bool
	subscribers map[chan Event]bool
	register    chan *Client
	unregister  chan *Client
	broadcast   chan Event
	logger      *zap.SugaredLogger
	metrics     StreamMetrics
	mu          sync.RWMutex
}

func NewHub(logger *zap.SugaredLogger, metrics StreamMetrics) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		subscribers: make(map[chan Event]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan Event, 64),
		logger:      logger,
		metrics:     metrics,
	}
}

// Publish queues an event for delivery. Payload is marshaled once here; a
// full broadcast queue drops the event rather than blocking the caller.
func (h *Hub) Publish(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Errorw("Failed to marshal event payload", "type", eventType, "error", err)
		return
	}

	evt := Event{
		Type:      eventType,
		Topic:     topicOf(eventType),
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	select {
	case h.broadcast <- evt:
	default:
		h.logger.Warnw("Event queue full, dropping event", "type", eventType)
	}
}

func topicOf(eventType string) string {
	for i := 0; i < len(eventType); i++ {
		if eventType[i] == '.' {
			return eventType[:i] + "s"
		}
	}
	return eventType
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Infow("Event hub shutting down")
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.IncrementStreams(ctx)
			}
			h.logger.Debugw("Event client connected", "topics", client.topicList())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.DecrementStreams(ctx)
			}
			h.logger.Debugw("Event client disconnected")

		case evt := <-h.broadcast:
			h.deliver(evt)
		}
	}
}

func (h *Hub) deliver(evt Event) {
	raw, err := json.Marshal(evt)
	if err != nil {
		h.logger.Errorw("Failed to marshal event", "type", evt.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.subscribed(evt.Topic) {
			continue
		}
		select {
		case client.send <- raw:
		default:
			// slow consumer, drop it
			delete(h.clients, client)
			close(client.send)
		}
	}

	for ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
			delete(h.subscribers, ch)
			close(ch)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// Subscribe registers a channel receiving every event, used by the SSE
// transport. The returned cancel func must be called when done.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ch := make(chan Event, 32)

	h.mu.Lock()
	h.subscribers[ch] = true
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.IncrementStreams(ctx)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subscribers[ch]; ok {
				delete(h.subscribers, ch)
				close(ch)
			}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.DecrementStreams(ctx)
			}
		})
	}
	return ch, cancel
}

// Client is one WebSocket connection managed by the hub.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	mu         sync.Mutex
	topics     map[string]bool
	lastActive time.Time
}

func (c *Client) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	// no explicit subscription means everything
	if len(c.topics) == 0 {
		return true
	}
	return c.topics[topic]
}

func (c *Client) topicList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorw("WebSocket error", "error", err)
			}
			break
		}

		c.lastActive = time.Now()
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// drain queued messages into the same frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var sub subscriptionRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		c.hub.logger.Warnw("Invalid subscription message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch sub.Type {
	case "subscribe":
		for _, topic := range sub.Topics {
			c.topics[topic] = true
		}
	case "unsubscribe":
		for _, topic := range sub.Topics {
			delete(c.topics, topic)
		}
	}
}
