package transport

import (
	"io"
	"net"
	"sync/atomic"
)

// Conn is the byte stream a session runs over. Healthy turns false after
// the first read or write failure; the liveness loop polls it to detect
// dead transports.
type Conn interface {
	io.ReadWriteCloser
	RemoteHost() string
	Healthy() bool
}

// TCPConn adapts a net.Conn.
type TCPConn struct {
	conn net.Conn
	dead atomic.Bool
}

// NewTCP wraps an accepted connection.
func NewTCP(conn net.Conn) *TCPConn {
	return &TCPConn{conn: conn}
}

func (c *TCPConn) Read(p []byte) (int, error) {
	n, err := c.conn.Read(p)
	if err != nil {
		c.dead.Store(true)
	}
	return n, err
}

func (c *TCPConn) Write(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	if err != nil {
		c.dead.Store(true)
	}
	return n, err
}

func (c *TCPConn) Close() error {
	c.dead.Store(true)
	return c.conn.Close()
}

func (c *TCPConn) Healthy() bool {
	return !c.dead.Load()
}

// RemoteHost returns the peer address without the port, so the per-address
// admission limit groups connections from one host together.
func (c *TCPConn) RemoteHost() string {
	addr := c.conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
