package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatMessage is a frame sent by the client
type ChatMessage struct {
	Message string `json:"message"`
}

// wsConnection is one chat client bound to a session
type wsConnection struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	server    *Server
}

// handleWebSocket upgrades the request and serves a chat session. The
// "session_id" query parameter resumes a session; otherwise one is created.
func (s *Server) handleWebSocket(c *gin.Context) {
	sessionID := s.sessions.Open(c.Query("session_id"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("api: websocket upgrade failed", slog.Any("error", err))
		return
	}

	ws := &wsConnection{
		conn:      conn,
		send:      make(chan []byte, 16),
		sessionID: sessionID,
		server:    s,
	}
	ws.sendJSON(gin.H{"session_id": sessionID})

	go ws.writePump()
	// Turns are handled on the request goroutine so they share its context.
	ws.readPump(c.Request.Context())
}

// readPump handles client frames until the connection closes
func (c *wsConnection) readPump(ctx context.Context) {
	defer func() {
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Warn("api: websocket error", slog.Any("error", err))
			}
			return
		}
		c.handleMessage(ctx, message)
	}
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *wsConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage runs one assistant turn for a client frame
func (c *wsConnection) handleMessage(ctx context.Context, message []byte) {
	var req ChatMessage
	if err := json.Unmarshal(message, &req); err != nil {
		c.sendError("invalid message: " + err.Error())
		return
	}

	reply, err := c.server.assistant.Handle(ctx, c.sessionID, req.Message)
	if err != nil {
		c.server.logger.Warn("api: websocket turn failed",
			slog.String("session_id", c.sessionID),
			slog.Any("error", err),
		)
		c.sendError(err.Error())
		return
	}
	c.sendJSON(reply)
}

func (c *wsConnection) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.server.logger.Error("api: failed to marshal websocket frame", slog.Any("error", err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.server.logger.Warn("api: websocket buffer full, dropping message", slog.String("session_id", c.sessionID))
	}
}

func (c *wsConnection) sendError(message string) {
	c.sendJSON(gin.H{"error": message})
}
