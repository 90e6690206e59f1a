// Package catalog pushes catalog changes to websocket subscribers so that open
// players can refresh their playlist without polling.
package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"WaveDeck/logger"
	"WaveDeck/model"

	"github.com/gorilla/websocket"
)

// MessageType names a catalog event.
type MessageType string

const (
	MsgTypeSync         MessageType = "sync"          // full catalog, sent on connect
	MsgTypeTrackCreated MessageType = "track_created" // one track was added
	MsgTypeTrackDeleted MessageType = "track_deleted" // one track was removed
	MsgTypePing         MessageType = "ping"
	MsgTypePong         MessageType = "pong"
)

// Message is the JSON frame sent to subscribers.
type Message struct {
	Type      MessageType    `json:"type"`
	Tracks    []*model.Track `json:"tracks,omitempty"`
	Track     *model.Track   `json:"track,omitempty"`
	TrackID   string         `json:"trackId,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// SnapshotFunc lists the current catalog for the sync message.
type SnapshotFunc func(ctx context.Context) ([]*model.Track, error)

const (
	sendBufferSize = 32
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxReadSize    = 4096
)

// Client is one websocket subscriber.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

// Hub fans catalog events out to every connected client.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	snapshot   SnapshotFunc

	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub. snapshot may be nil, in which case no sync is sent.
func NewHub(snapshot SnapshotFunc) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		snapshot:   snapshot,
		done:       make(chan struct{}),
	}
}

// Run is the hub main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToClients(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop ends Run and closes every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	if h.snapshot != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		tracks, err := h.snapshot(ctx)
		cancel()
		if err != nil {
			logger.Warn("failed to build catalog snapshot", logger.ErrorField(err))
		} else if data, err := encode(&Message{Type: MsgTypeSync, Tracks: tracks}); err == nil {
			select {
			case client.Send <- data:
			default:
			}
		}
	}

	logger.Debug("catalog subscriber registered", logger.Int("subscribers", h.ClientCount()))
}

// removeClient must be called with h.mu held.
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		logger.Debug("catalog subscriber unregistered", logger.Int("subscribers", len(h.clients)))
	}
}

func (h *Hub) broadcastToClients(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.Send <- message:
		default:
			// slow subscriber; it can reconnect and resync
			h.removeClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]bool)
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client. It returns false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) publish(msg *Message) {
	data, err := encode(msg)
	if err != nil {
		logger.Error("failed to encode catalog event", logger.ErrorField(err))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// TrackCreated announces a new track.
func (h *Hub) TrackCreated(track *model.Track) {
	h.publish(&Message{Type: MsgTypeTrackCreated, Track: track, TrackID: track.ID})
}

// TrackDeleted announces a removed track.
func (h *Hub) TrackDeleted(id string) {
	h.publish(&Message{Type: MsgTypeTrackDeleted, TrackID: id})
}

func encode(msg *Message) ([]byte, error) {
	msg.Timestamp = time.Now().UnixMilli()
	return json.Marshal(msg)
}

// Serve attaches conn to the hub and blocks until the connection ends.
func (h *Hub) Serve(conn *websocket.Conn) {
	client := &Client{Hub: h, Conn: conn, Send: make(chan []byte, sendBufferSize)}
	if !h.Register(client) {
		conn.Close()
		return
	}
	go client.WritePump()
	client.ReadPump()
}

// ReadPump reads until the peer goes away. Only pings are understood; the feed is
// otherwise one-way.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxReadSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err))
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != MsgTypePing {
			continue
		}
		if data, err := encode(&Message{Type: MsgTypePong}); err == nil {
			c.trySend(data)
		}
	}
}

// trySend queues data unless the client has already been removed.
func (c *Client) trySend(data []byte) {
	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	if !c.Hub.clients[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// WritePump writes queued messages, one websocket frame each, and pings the peer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
