package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/masapos/api/internal/auth"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 512
	sendBuffer     = 256
)

var errInvalidTableID = errors.New("invalid table id")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // token in the query is the gate
	},
}

// Client is one terminal subscribed to a room.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	room uuid.UUID
	send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, room uuid.UUID) *Client {
	return &Client{hub: hub, conn: conn, room: room, send: make(chan []byte, sendBuffer)}
}

func (c *Client) logger() *logrus.Entry {
	return logrus.WithField("room", c.room.String())
}

// ReadPump only watches for disconnects; terminals never send events.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger().WithError(err).Warn("websocket read error")
			}
			return
		}
	}
}

// WritePump writes each event as its own text frame so every frame is one
// JSON document, and keeps the connection alive with pings.
func (c *Client) WritePump() {
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
				// Dropped by the hub.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger().WithError(err).Debug("websocket write failed")
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

// roomFromRequest returns the table room named by the {tid} URL param, or
// FloorRoom when the route has none.
func roomFromRequest(r *http.Request) (uuid.UUID, error) {
	tid := chi.URLParam(r, "tid")
	if tid == "" {
		return FloorRoom, nil
	}
	tableID, err := uuid.Parse(tid)
	if err != nil || tableID == FloorRoom {
		return uuid.Nil, errInvalidTableID
	}
	return tableID, nil
}

// ServeWS upgrades a terminal's connection and subscribes it to a room.
// Endpoints: WS /ws/floor?token=JWT and WS /ws/tables/{tid}?token=JWT
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if _, err := auth.ValidateToken(jwtSecret, tokenStr); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	room, err := roomFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := newClient(hub, conn, room)
	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
