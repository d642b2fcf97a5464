package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024

	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
	Subprotocols:    []string{SubprotocolProtobuf, SubprotocolJSON},
}

// Client is one websocket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	connID   string
	groups   map[string]bool
	logger   *zap.Logger
	protocol string
}

// negotiate picks the wire protocol from the requested subprotocols.
// JSON is the default when none is requested.
func negotiate(r *http.Request) (string, http.Header) {
	for _, p := range websocket.Subprotocols(r) {
		switch p {
		case SubprotocolProtobuf:
			return ProtocolProtobuf, http.Header{"Sec-Websocket-Protocol": {p}}
		case SubprotocolJSON:
			return ProtocolJSON, http.Header{"Sec-Websocket-Protocol": {p}}
		}
	}
	return ProtocolJSON, nil
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	protocol, responseHeader := negotiate(r)

	conn, err := upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		connID:   uuid.New().String(),
		groups:   make(map[string]bool),
		logger:   h.logger,
		protocol: protocol,
	}

	select {
	case h.register <- client:
	case <-h.closed:
		conn.Close()
		return
	}
	client.trySend(buildConnectedMessage(protocol, client.connID))

	h.logger.Info("stream client connected",
		zap.String("connID", client.connID),
		zap.String("protocol", protocol),
		zap.String("remoteAddr", r.RemoteAddr),
	)

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", zap.String("connID", c.connID), zap.Error(err))
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	msgType := websocket.BinaryMessage
	if c.protocol == ProtocolJSON {
		msgType = websocket.TextMessage
	}

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(msgType, message); err != nil {
				c.logger.Debug("websocket write error", zap.String("connID", c.connID), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues msg without blocking. It reports false when the buffer is
// full or the client is closed.
func (c *Client) trySend(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) handleMessage(data []byte) {
	msg, err := parseUpstreamMessage(data)
	if err != nil {
		c.logger.Debug("failed to parse upstream message", zap.String("connID", c.connID), zap.Error(err))
		return
	}

	switch m := msg.(type) {
	case *joinGroupRequest:
		var reason string
		if c.hub.validate != nil {
			if err := c.hub.validate(m.group); err != nil {
				reason = err.Error()
			}
		}
		if reason == "" {
			c.hub.JoinGroup(c, m.group)
		} else {
			c.logger.Debug("invalid group name", zap.String("connID", c.connID), zap.String("group", m.group))
		}
		if m.ackID != nil {
			c.trySend(buildAckMessage(c.protocol, *m.ackID, reason == "", reason))
		}

	case *leaveGroupRequest:
		c.hub.LeaveGroup(c, m.group)
		if m.ackID != nil {
			c.trySend(buildAckMessage(c.protocol, *m.ackID, true, ""))
		}

	case *pingRequest:
		c.trySend(buildPongMessage(c.protocol))
	}
}
