// Package api provides WebSocket functionality for real-time updates.
package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/events"
)

// MessageType identifies the event schema a WSMessage carries.
type MessageType string

const (
	MsgTypePriceUpdate     MessageType = "price_update"
	MsgTypeAnalysisReady   MessageType = "analysis_ready"
	MsgTypeSignal          MessageType = "signal"
	MsgTypePositionOpened  MessageType = "position_opened"
	MsgTypePositionClosed  MessageType = "position_closed"
	MsgTypeHeartbeat       MessageType = "heartbeat"

	// Client -> Server messages
	MsgTypeSubscribe   MessageType = "subscribe"
	MsgTypeUnsubscribe MessageType = "unsubscribe"
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
	mu            sync.RWMutex
}

// Hub manages WebSocket connections and the channels they subscribe to.
// Channel names match event bus topics one-for-one.
type Hub struct {
	logger     *zap.Logger
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	channels   map[string]map[*Client]bool
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		channels:   make(map[string]map[*Client]bool),
	}
}

// Run starts the hub's dispatch loop; call it in its own goroutine.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for channel := range client.subscriptions {
					if clients, ok := h.channels[channel]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.channels, channel)
						}
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", zap.String("id", client.id))

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()

		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}

func (h *Hub) sendHeartbeat() {
	msg := WSMessage{Type: MsgTypeHeartbeat, Timestamp: time.Now().UnixMilli()}
	data, _ := json.Marshal(msg)

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
	h.mu.RUnlock()
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
}

// Unsubscribe removes a client from a channel.
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

// PublishToChannel sends a message of msgType to every client subscribed
// to channel.
func (h *Hub) PublishToChannel(channel string, msgType MessageType, data interface{}) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal message data", zap.Error(err))
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
		h.logger.Error("failed to marshal message", zap.Error(err))
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

// Broadcast sends a message to every connected client, regardless of
// channel subscription.
func (h *Hub) Broadcast(msgType MessageType, data interface{}) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal broadcast data", zap.Error(err))
		return
	}
	msg := WSMessage{Type: msgType, Data: dataBytes, Timestamp: time.Now().UnixMilli()}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- msgBytes:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewClient creates a new client bound to hub over conn.
func NewClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:            id,
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub. A
// freshly connected client gets no channels until it subscribes.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
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
				c.hub.logger.Error("websocket read error", zap.Error(err))
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Warn("invalid websocket message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case MsgTypeSubscribe:
			c.hub.Subscribe(c, msg.Channel)
		case MsgTypeUnsubscribe:
			c.hub.Unsubscribe(c, msg.Channel)
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
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

// priceUpdatePayload is the stable wire projection for a price_update
// message: t, g, o, u stand for timestamp, gram_gold, ounce_usd, usd_try.
type priceUpdatePayload struct {
	T int64   `json:"t"`
	G string  `json:"g"`
	O string  `json:"o"`
	U string  `json:"u"`
}

// Broadcaster subscribes to the event bus's price_update, analysis_ready,
// signal, position_opened, and position_closed topics and republishes each
// event onto the Hub channel of the same name. price_update is translated
// into its stable wire projection; the other payloads are sent as-is.
type Broadcaster struct {
	hub *Hub
	bus *events.EventBus
}

// NewBroadcaster wires hub to bus. Call Start to begin forwarding.
func NewBroadcaster(hub *Hub, bus *events.EventBus) *Broadcaster {
	return &Broadcaster{hub: hub, bus: bus}
}

// Start subscribes the broadcaster to every channel the API exposes over
// WebSocket. It is idempotent only in the sense that calling it twice
// double-subscribes; callers should call it once.
func (b *Broadcaster) Start() {
	b.bus.Subscribe(events.TopicPriceUpdate, func(e events.Event) error {
		pu, ok := e.(*events.PriceUpdateEvent)
		if !ok {
			return nil
		}
		payload := priceUpdatePayload{
			T: pu.Quote.Timestamp.UnixMilli(),
			G: pu.Quote.GramGold.String(),
			O: pu.Quote.OunceUSD.String(),
			U: pu.Quote.USDTRY.String(),
		}
		b.hub.PublishToChannel(string(events.TopicPriceUpdate), MsgTypePriceUpdate, payload)
		return nil
	})

	b.bus.Subscribe(events.TopicAnalysisReady, func(e events.Event) error {
		ar, ok := e.(*events.AnalysisReadyEvent)
		if !ok {
			return nil
		}
		b.hub.PublishToChannel(string(events.TopicAnalysisReady), MsgTypeAnalysisReady, ar.Analysis)
		return nil
	})

	b.bus.Subscribe(events.TopicSignal, func(e events.Event) error {
		sig, ok := e.(*events.SignalEvent)
		if !ok {
			return nil
		}
		b.hub.PublishToChannel(string(events.TopicSignal), MsgTypeSignal, sig.Signal)
		return nil
	})

	b.bus.Subscribe(events.TopicPositionOpened, func(e events.Event) error {
		po, ok := e.(*events.PositionOpenedEvent)
		if !ok {
			return nil
		}
		b.hub.PublishToChannel(string(events.TopicPositionOpened), MsgTypePositionOpened, po.Position)
		return nil
	})

	b.bus.Subscribe(events.TopicPositionClosed, func(e events.Event) error {
		pc, ok := e.(*events.PositionClosedEvent)
		if !ok {
			return nil
		}
		b.hub.PublishToChannel(string(events.TopicPositionClosed), MsgTypePositionClosed, pc.Position)
		return nil
	})
}
