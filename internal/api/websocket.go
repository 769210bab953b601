package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/data"
	"github.com/tradeforge/trading-backend/internal/paper"
)

// MessageType defines WebSocket message types.
type MessageType string

const (
	// Server -> Client messages
	MsgTypeQuote         MessageType = "quote"
	MsgTypeOrderUpdate   MessageType = "order_update"
	MsgTypeForwardSignal MessageType = "forward:signal"
	MsgTypeForwardState  MessageType = "forward:state"
	MsgTypeError         MessageType = "error"
	MsgTypeHeartbeat     MessageType = "heartbeat"

	// Client -> Server messages
	MsgTypeSubscribe    MessageType = "subscribe"
	MsgTypeUnsubscribe  MessageType = "unsubscribe"
	MsgTypeForwardStart MessageType = "forward:start"
	MsgTypeForwardStop  MessageType = "forward:stop"
)

// WSMessage is a WebSocket message.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client is a WebSocket client connection.
type Client struct {
	id            string
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]bool
	forward       *forwardSession
	mu            sync.RWMutex
}

// Hub manages WebSocket connections and channel subscriptions.
type Hub struct {
	logger     *zap.Logger
	streamer   *Streamer
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	channels   map[string]map[*Client]bool
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub. The streamer may be nil, in which
// case forward testing over the socket is refused.
func NewHub(logger *zap.Logger, streamer *Streamer) *Hub {
	return &Hub{
		logger:     logger.Named("ws"),
		streamer:   streamer,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		channels:   make(map[string]map[*Client]bool),
		stop:       make(chan struct{}),
	}
}

// Run processes client registration and broadcasts until Shutdown.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Client registered", zap.String("id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			client.mu.RLock()
			for channel := range client.subscriptions {
				if subs, ok := h.channels[channel]; ok {
					delete(subs, client)
					if len(subs) == 0 {
						delete(h.channels, channel)
					}
				}
			}
			client.mu.RUnlock()
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", zap.String("id", client.id))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-ticker.C:
			h.Broadcast(MsgTypeHeartbeat, nil)

		case <-h.stop:
			return
		}
	}
}

// Shutdown stops the hub and closes every client connection. The pumps
// notice the closed connections and wind themselves down. Safe to call
// more than once.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.stop) })
	h.mu.Lock()
	for client := range h.clients {
		client.conn.Close()
	}
	h.mu.Unlock()
}

// Subscribe subscribes a client to a channel.
func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true

	client.mu.Lock()
	client.subscriptions[channel] = true
	client.mu.Unlock()

	h.logger.Debug("Client subscribed to channel",
		zap.String("client", client.id),
		zap.String("channel", channel))
}

// Unsubscribe unsubscribes a client from a channel.
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}

	client.mu.Lock()
	delete(client.subscriptions, channel)
	client.mu.Unlock()
}

// PublishToChannel publishes a message to every subscriber of a channel.
func (h *Hub) PublishToChannel(channel string, msgType MessageType, data interface{}) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal message data", zap.Error(err))
		return
	}

	msg := WSMessage{
		Type:      msgType,
		Channel:   channel,
		Data:      dataBytes,
		Timestamp: time.Now().UnixMilli(),
	}

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.channels[channel]; ok {
		for client := range clients {
			select {
			case client.send <- msgBytes:
			default:
			}
		}
	}
}

// Broadcast sends a message to all clients through the hub's run loop,
// which drops and evicts clients whose send buffers are full.
func (h *Hub) Broadcast(msgType MessageType, data interface{}) {
	msg := WSMessage{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
	if data != nil {
		dataBytes, err := json.Marshal(data)
		if err != nil {
			h.logger.Error("Failed to marshal broadcast data", zap.Error(err))
			return
		}
		msg.Data = dataBytes
	}

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- msgBytes:
	default:
		h.logger.Warn("Broadcast channel full, dropping message")
	}
}

// BroadcastOrderUpdate publishes a paper order to the order channels.
func (h *Hub) BroadcastOrderUpdate(order *paper.Order) {
	h.PublishToChannel("orders", MsgTypeOrderUpdate, order)
	h.PublishToChannel("orders:"+order.Symbol, MsgTypeOrderUpdate, order)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ActiveChannels returns the subscribed channels matching prefix.
func (h *Hub) ActiveChannels(prefix string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []string
	for channel, subs := range h.channels {
		if len(subs) > 0 && strings.HasPrefix(channel, prefix) {
			out = append(out, channel)
		}
	}
	return out
}

// canonicalChannel validates a subscription request and rewrites the
// symbol part to its catalog form, so "quotes:nifty 50" and
// "quotes:NIFTY 50" land on the same channel.
func canonicalChannel(channel string) (string, error) {
	if channel == "orders" {
		return channel, nil
	}
	prefix, symbol, found := strings.Cut(channel, ":")
	if !found || (prefix != "orders" && prefix != "quotes") {
		return "", fmt.Errorf("unknown channel %q", channel)
	}
	info, ok := data.Lookup(symbol)
	if !ok {
		return "", fmt.Errorf("unknown symbol %q", symbol)
	}
	return prefix + ":" + info.Symbol, nil
}

// NewClient creates a new client.
func NewClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:            id,
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the request and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.NewString(), s.hub, conn)
	select {
	case s.hub.register <- client:
	case <-s.hub.stop:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// ReadPump pumps messages from the WebSocket to the hub.
func (c *Client) ReadPump() {
	defer func() {
		if session := c.detachForward(); session != nil {
			session.Stop()
		}
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket read error", zap.Error(err))
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Warn("Invalid WebSocket message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case MsgTypeSubscribe:
			channel, err := canonicalChannel(msg.Channel)
			if err != nil {
				c.sendError(err.Error())
				continue
			}
			c.hub.Subscribe(c, channel)
		case MsgTypeUnsubscribe:
			channel, err := canonicalChannel(msg.Channel)
			if err != nil {
				c.sendError(err.Error())
				continue
			}
			c.hub.Unsubscribe(c, channel)
		case MsgTypeForwardStart:
			c.handleForwardStart(msg)
		case MsgTypeForwardStop:
			c.handleForwardStop()
		default:
			c.sendError(fmt.Sprintf("unsupported message type %q", msg.Type))
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket.
func (c *Client) WritePump() {
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

			// Batch additional messages
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

// handleForwardStart starts a forward-testing session for this client,
// replacing any session already running.
func (c *Client) handleForwardStart(msg WSMessage) {
	if c.hub.streamer == nil {
		c.sendError("forward testing is not available")
		return
	}

	var req ForwardStartRequest
	if len(msg.Data) == 0 {
		c.sendError("forward:start requires a strategy payload")
		return
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		c.sendError("invalid forward:start payload: " + err.Error())
		return
	}

	session, err := c.hub.streamer.Start(c, req)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	if prev := c.swapForward(session); prev != nil {
		prev.Stop()
		c.hub.Unsubscribe(c, prev.channel)
	}
	c.hub.Subscribe(c, session.channel)

	cfg := session.tester.Config()
	c.sendMessage(MsgTypeForwardState, session.channel, ForwardState{
		SessionID: session.id,
		Status:    "started",
		Symbol:    cfg.Symbol,
		Strategy:  cfg.StrategyType,
		Warm:      session.tester.Warm(),
		Bars:      session.tester.Len(),
	})
}

// handleForwardStop stops the client's forward session, if any.
func (c *Client) handleForwardStop() {
	session := c.detachForward()
	if session == nil {
		c.sendError("no forward session running")
		return
	}

	session.Stop()
	c.hub.Unsubscribe(c, session.channel)

	cfg := session.tester.Config()
	c.sendMessage(MsgTypeForwardState, session.channel, ForwardState{
		SessionID: session.id,
		Status:    "stopped",
		Symbol:    cfg.Symbol,
		Strategy:  cfg.StrategyType,
		Bars:      session.tester.Len(),
	})
}

// swapForward installs a new forward session and returns the previous one.
func (c *Client) swapForward(session *forwardSession) *forwardSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.forward
	c.forward = session
	return prev
}

// detachForward removes and returns the client's forward session.
func (c *Client) detachForward() *forwardSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	session := c.forward
	c.forward = nil
	return session
}

// sendMessage queues a message for this client. Only called from the
// client's own read loop, which cannot outlive the send channel.
func (c *Client) sendMessage(msgType MessageType, channel string, data interface{}) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		c.hub.logger.Error("Failed to marshal message data", zap.Error(err))
		return
	}

	msg := WSMessage{
		Type:      msgType,
		Channel:   channel,
		Data:      dataBytes,
		Timestamp: time.Now().UnixMilli(),
	}

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- msgBytes:
	default:
	}
}

func (c *Client) sendError(message string) {
	c.sendMessage(MsgTypeError, "", map[string]string{"error": message})
}
