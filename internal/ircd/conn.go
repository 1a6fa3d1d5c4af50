// Package ircd is a small loopback IRC server. It speaks enough of the
// protocol to register clients, relay channel and private messages and
// send keepalive checks, over plain TCP and WebSocket. The client tests run
// against it, and cmd/server serves it for trying the client locally.
package ircd

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Conn abstracts a client connection for both TCP and WebSocket.
type Conn interface {
	// Read returns the next chunk of bytes from the client. Returns io.EOF
	// when the connection is closed.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one or more CRLF-terminated lines.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// TCPConn adapts net.Conn to Conn.
type TCPConn struct {
	conn net.Conn
}

// NewTCPConn wraps a net.Conn.
func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{conn: conn}
}

// Read implements Conn.
func (c *TCPConn) Read(_ context.Context) ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Write implements Conn.
func (c *TCPConn) Write(_ context.Context, data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

// Close implements Conn.
func (c *TCPConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements Conn.
func (c *TCPConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// WSConn adapts a gorilla WebSocket connection to Conn. Each text message
// carries one line without CRLF.
type WSConn struct {
	conn       *websocket.Conn
	remoteAddr string
}

// NewWSConn wraps an upgraded WebSocket connection.
func NewWSConn(conn *websocket.Conn, remoteAddr string) *WSConn {
	return &WSConn{conn: conn, remoteAddr: remoteAddr}
}

// Read implements Conn. The CRLF stripped by the transport is put back so
// the hub sees the same byte stream as over TCP.
func (c *WSConn) Read(_ context.Context) ([]byte, error) {
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		data = bytes.TrimRight(data, "\r\n")
		return append(data, '\r', '\n'), nil
	}
}

// Write implements Conn.
func (c *WSConn) Write(_ context.Context, data []byte) error {
	for _, line := range bytes.Split(data, []byte("\r\n")) {
		if len(line) == 0 {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Conn.
func (c *WSConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

// RemoteAddr implements Conn.
func (c *WSConn) RemoteAddr() string {
	return c.remoteAddr
}
