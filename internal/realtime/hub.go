package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// JoinHandler is called once per viewer join (e.g. to mark the attendance as
// attended once the session is live).
type JoinHandler func(sessionID, attendeeID uuid.UUID)

// Hub maintains session_id -> set of connections and broadcasts control
// signals. Uses Redis pub/sub for horizontal scaling: local broadcast plus
// publish to Redis. Signals are fire-and-forget: nothing is persisted, a
// participant who joins after a signal was published never sees it, and a
// slow consumer's buffer overflow drops rather than blocks.
type Hub struct {
	// sessionID -> map[clientID]*Client
	sessions map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per session
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    Publisher
	redisSub Subscriber
	onJoin   JoinHandler
}

// Publisher is the interface for publishing to the shared transport
// (for cross-instance broadcast).
type Publisher interface {
	PublishSessionSignal(sessionID uuid.UUID, kind SignalKind, payload []byte) error
}

// Subscriber subscribes to session topics and invokes handler for incoming
// signals.
type Subscriber interface {
	SubscribeSession(sessionID uuid.UUID, handler func(kind SignalKind, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new control-signal hub.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    pub,
		redisSub: sub,
	}
}

// SetJoinHandler sets the callback invoked when a viewer joins a session topic.
func (h *Hub) SetJoinHandler(fn JoinHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onJoin = fn
}

// Register adds a client to a session topic. Starts the Redis subscription
// for this session when none is active yet, so a subscribe failure on one
// join is retried on the next instead of leaving the session cut off from
// cross-instance signals. Registering an already registered client is a
// no-op, so re-joins are never an error.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sessions[c.SessionID] == nil {
		h.sessions[c.SessionID] = make(map[string]*Client)
	}
	if h.redisSub != nil && h.subs[c.SessionID] == nil {
		cancel, err := h.redisSub.SubscribeSession(c.SessionID, func(kind SignalKind, payload []byte) {
			h.BroadcastToSession(c.SessionID, kind, json.RawMessage(payload))
		})
		if err != nil {
			h.logger.Error("session subscribe failed, remote signals unavailable until the next join",
				zap.Error(err),
				zap.String("session_id", c.SessionID.String()))
		} else {
			h.subs[c.SessionID] = cancel
		}
	}
	_, rejoined := h.sessions[c.SessionID][c.ID]
	h.sessions[c.SessionID][c.ID] = c
	onJoin := h.onJoin
	h.mu.Unlock()

	if onJoin != nil && !rejoined && c.Role == roleViewer {
		onJoin(c.SessionID, c.AttendeeID)
	}
	h.logger.Debug("client joined session", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// Unregister removes a client from a session topic. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.sessions[c.SessionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.sessions, c.SessionID)
			if cancel, ok := h.subs[c.SessionID]; ok {
				cancel()
				delete(h.subs, c.SessionID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left session", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// BroadcastToSession sends a signal to all local clients on a session topic.
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, kind SignalKind, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := Signal{Kind: kind, Data: data}

	h.mu.RLock()
	clients := h.sessions[sessionID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToSessionAndPublish sends to local clients and publishes to Redis
// for other instances.
func (h *Hub) BroadcastToSessionAndPublish(sessionID uuid.UUID, kind SignalKind, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToSession(sessionID, kind, payload)
	if h.redis != nil {
		_ = h.redis.PublishSessionSignal(sessionID, kind, data)
	}
}

// PublishToSessionOnly publishes to Redis only (no local broadcast): the
// Redis subscriber callback performs the broadcast once for every instance,
// including this one, avoiding duplicate delivery to local clients.
func (h *Hub) PublishToSessionOnly(sessionID uuid.UUID, kind SignalKind, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		_ = h.redis.PublishSessionSignal(sessionID, kind, data)
		return
	}
	h.BroadcastToSession(sessionID, kind, payload)
}

// AudienceCount returns the number of connected clients on a session topic.
func (h *Hub) AudienceCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
