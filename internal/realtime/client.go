package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Signal is the wire envelope for one control signal.
type Signal struct {
	Kind SignalKind      `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TokenValidator checks a channel admission token and returns who it admits.
type TokenValidator func(token string) (attendeeID, sessionID uuid.UUID, role string, err error)

// Client represents a single WebSocket connection on a session topic.
type Client struct {
	ID         string
	SessionID  uuid.UUID
	AttendeeID uuid.UUID
	Role       string
	hub        *Hub
	conn       *websocket.Conn
	send       chan Signal
	logger     *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop. The token
// must admit the caller to the requested session; a token for another session
// is rejected.
func ServeWs(hub *Hub, logger *zap.Logger, validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionIDStr := c.Query("session_id")
		token := c.Query("token")
		if sessionIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and token required"})
			return
		}
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		attendeeID, tokenSessionID, role, err := validate(token)
		if err != nil || tokenSessionID != sessionID {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			// One connection per token holder: re-subscribing replaces the
			// previous registration instead of erroring.
			ID:         role + ":" + attendeeID.String(),
			SessionID:  sessionID,
			AttendeeID: attendeeID,
			Role:       role,
			hub:        hub,
			conn:       conn,
			send:       make(chan Signal, 256),
			logger:     logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg Signal
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		// Only the host may publish control signals from the socket itself;
		// viewer messages are dropped.
		if c.Role != roleHost {
			continue
		}
		c.hub.BroadcastToSessionAndPublish(c.SessionID, msg.Kind, json.RawMessage(msg.Data))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
