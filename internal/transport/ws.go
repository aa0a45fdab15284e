package transport

import (
	"net"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// WSConn presents a websocket connection as a plain byte stream, so a
// browser terminal can host a session exactly like a raw socket does.
type WSConn struct {
	conn *websocket.Conn
	rest []byte
	dead atomic.Bool
}

// NewWS wraps an upgraded websocket connection.
func NewWS(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (c *WSConn) Read(p []byte) (int, error) {
	if len(c.rest) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.dead.Store(true)
			return 0, err
		}
		c.rest = data
	}
	n := copy(p, c.rest)
	c.rest = c.rest[n:]
	return n, nil
}

func (c *WSConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		c.dead.Store(true)
		return 0, err
	}
	return len(p), nil
}

func (c *WSConn) Close() error {
	c.dead.Store(true)
	return c.conn.Close()
}

func (c *WSConn) Healthy() bool {
	return !c.dead.Load()
}

func (c *WSConn) RemoteHost() string {
	addr := c.conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
