package kds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/utils"
)

// Event types
const (
	EventChange          = "db_change"
	EventKitchenSnapshot = "kitchen_snapshot"
	EventCounterSnapshot = "counter_snapshot"
	EventNotification    = "notification"
	EventSessionUpdate   = "session_update"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Change is one change-feed entry. Receivers must treat it as a hint to
// refetch: it can arrive twice or out of order.
type Change struct {
	Entity    string    `json:"entity"`
	RecordID  string    `json:"record_id"`
	Action    string    `json:"action"`
	ChangedAt time.Time `json:"changed_at"`
}

// Subscriber receives changes matching its entity filter.
type Subscriber func(Change)

type subscription struct {
	entities map[string]bool
	fn       Subscriber
}

func (s subscription) matches(entity string) bool {
	return len(s.entities) == 0 || s.entities[entity]
}

// connWriter is the part of *websocket.Conn the hub needs.
type connWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one websocket connection (kitchen, counter or admin screen).
type Client struct {
	conn connWriter
	role string
	mu   sync.Mutex
}

func (c *Client) Role() string {
	return c.role
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Send writes one message to this client only.
func (c *Client) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.write(data)
}

// Hub fans changes out to in-process subscribers and websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	subs    map[int]subscription
	nextID  int
	log     *logrus.Entry
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		subs:    make(map[int]subscription),
		log:     utils.Logger().WithField("component", "kds"),
	}
}

// Subscribe registers fn for changes to the given entities (all entities when
// none are given). The returned func removes the subscription.
func (h *Hub) Subscribe(fn Subscriber, entities ...string) func() {
	sub := subscription{fn: fn, entities: make(map[string]bool, len(entities))}
	for _, e := range entities {
		sub.entities[e] = true
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Publish delivers change to matching subscribers and pushes it to every websocket client.
func (h *Hub) Publish(change Change) {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.matches(change.Entity) {
			targets = append(targets, sub.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		h.deliver(fn, change)
	}

	h.Broadcast(Message{Event: EventChange, Data: change})
}

func (h *Hub) deliver(fn Subscriber, change Change) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorf("subscriber panicked on %s/%s: %v", change.Entity, change.RecordID, r)
		}
	}()
	fn(change)
}

// Register adds a websocket connection with its staff role.
func (h *Hub) Register(conn *websocket.Conn, role string) *Client {
	return h.register(conn, role)
}

func (h *Hub) register(conn connWriter, role string) *Client {
	client := &Client{conn: conn, role: role}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.log.Infof("client registered with role %s", role)
	return client
}

// Unregister removes and closes the connection.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	if ok {
		_ = client.conn.Close()
	}
}

// ClientCount is used by health output and tests.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every client.
func (h *Hub) Broadcast(msg Message) {
	h.broadcast(msg)
}

// BroadcastToRole sends msg to clients of the given roles; admins receive everything.
func (h *Hub) BroadcastToRole(msg Message, roles ...string) {
	h.broadcast(msg, roles...)
}

func (h *Hub) broadcast(msg Message, roles ...string) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if len(roles) == 0 || c.role == "admin" || hasRole(roles, c.role) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(data); err != nil {
			h.log.Warnf("dropping %s client after write error: %v", c.role, err)
			h.Unregister(c)
		}
	}
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
