// Package ws pushes auction and transaction updates to browsers over
// WebSocket connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"bidding-engine/utils"

	"github.com/gorilla/websocket"
)

// Connection limits. The ping interval stays under the idle timeout so a
// healthy peer always answers in time.
const (
	writeTimeout  = 10 * time.Second
	idleTimeout   = time.Minute
	pingInterval  = idleTimeout * 9 / 10
	maxFrameBytes = 4 << 10

	clientQueueLen = 256 // frames buffered per connection
	updateQueueLen = 256 // updates buffered ahead of the fan-out loop
)

// ErrHubStopped is returned by Deliver once Run has exited
var ErrHubStopped = errors.New("ws: hub stopped")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin checks belong to the gateway in front of the engine
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one browser connection and the topics it follows
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	frames chan []byte
	topics map[string]struct{}
	gone   bool // frames is closed
	mu     sync.RWMutex
}

// request manages a client's topics
type request struct {
	Action string   `json:"action"` // subscribe | unsubscribe
	Topics []string `json:"topics"`
}

// envelope is every frame the hub writes
type envelope struct {
	Type   string          `json:"type"`
	Topic  string          `json:"topic,omitempty"`
	Topics []string        `json:"topics,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type update struct {
	topic   string
	payload []byte
}

// Hub tracks connected clients and forwards each update to the clients
// following its topic. It implements notify.Sink.
type Hub struct {
	clients map[*client]struct{}
	updates chan update
	joins   chan *client
	leaves  chan *client
	done    chan struct{}
	mu      sync.RWMutex
}

// NewHub returns a hub that accepts connections once Run is started
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		updates: make(chan update, updateQueueLen),
		joins:   make(chan *client),
		leaves:  make(chan *client),
		done:    make(chan struct{}),
	}
}

// Name implements notify.Sink
func (h *Hub) Name() string { return "websocket" }

// Deliver implements notify.Sink. It waits only while the update queue is full.
func (h *Hub) Deliver(ctx context.Context, topic string, data []byte) error {
	select {
	case h.updates <- update{topic: topic, payload: data}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run owns the client set until ctx is cancelled, then drops every connection
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return ctx.Err()
		case c := <-h.joins:
			h.attach(c)
		case c := <-h.leaves:
			h.detach(c)
		case u := <-h.updates:
			h.fanOut(u)
		}
	}
}

func (h *Hub) attach(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	utils.Debug("ws: client connected", map[string]any{"total_clients": n})
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	utils.Debug("ws: client disconnected", map[string]any{"total_clients": n})
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// fanOut never blocks on a slow client; its frame is dropped instead
func (h *Hub) fanOut(u update) {
	frame, err := json.Marshal(envelope{Type: "update", Topic: u.topic, Data: u.payload})
	if err != nil {
		utils.Error("ws: failed to encode update", map[string]any{"topic": u.topic, "error": err.Error()})
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.follows(u.topic) {
			continue
		}
		select {
		case c.frames <- frame:
		default:
			utils.Warn("ws: dropping update for slow client", map[string]any{"topic": u.topic})
		}
	}
}

// HandleWS serves GET /ws. A comma separated "topics" query parameter
// subscribes the connection before its first frame.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Warn("ws: upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		frames: make(chan []byte, clientQueueLen),
		topics: make(map[string]struct{}),
	}
	initial := splitTopics(r.URL.Query().Get("topics"))
	for _, t := range initial {
		c.topics[t] = struct{}{}
	}

	select {
	case h.joins <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	if len(initial) > 0 {
		c.ack("subscribed", initial)
	}

	go c.writeFrames()
	go c.readRequests()
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func splitTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// readRequests applies topic requests until the peer goes away or stops
// answering pings
func (c *client) readRequests() {
	defer func() {
		select {
		case c.hub.leaves <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	}
	c.conn.SetReadLimit(maxFrameBytes)
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Warn("ws: unexpected close error", map[string]any{"error": err.Error()})
			}
			return
		}

		var req request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.ack("error", nil)
			continue
		}
		c.apply(req)
	}
}

func (c *client) apply(req request) {
	var kind string
	c.mu.Lock()
	switch req.Action {
	case "subscribe":
		kind = "subscribed"
		for _, t := range req.Topics {
			c.topics[t] = struct{}{}
		}
	case "unsubscribe":
		kind = "unsubscribed"
		for _, t := range req.Topics {
			delete(c.topics, t)
		}
	default:
		kind = "error"
	}
	c.mu.Unlock()
	c.ack(kind, req.Topics)
}

// ack tells the client its topic change is in effect
func (c *client) ack(kind string, topics []string) {
	frame, err := json.Marshal(envelope{Type: kind, Topics: topics})
	if err != nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gone {
		return
	}
	select {
	case c.frames <- frame:
	default:
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gone = true
	close(c.frames)
}

func (c *client) follows(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[topic]
	return ok
}

// writeFrames is the only writer on conn
func (c *client) writeFrames() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind int
			body []byte
		)
		select {
		case frame, ok := <-c.frames:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			kind, body = websocket.TextMessage, frame
		case <-ping.C:
			kind = websocket.PingMessage
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(kind, body); err != nil {
			return
		}
	}
}
