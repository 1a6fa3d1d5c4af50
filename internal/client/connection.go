package client

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection represents a connection to the server
type Connection interface {
	// Write sends data to the server
	Write(data []byte) (int, error)

	// Read receives data from the server
	Read(buf []byte) (int, error)

	// Close closes the connection
	Close() error

	// RemoteAddr returns the server address
	RemoteAddr() net.Addr
}

// deadliner is implemented by connections that support write deadlines.
type deadliner interface {
	SetWriteDeadline(t time.Time) error
}

// TCPConnection wraps net.Conn for plain and TLS connections
type TCPConnection struct {
	conn net.Conn
}

// NewTCPConnection creates a new TCP connection wrapper
func NewTCPConnection(conn net.Conn) *TCPConnection {
	return &TCPConnection{conn: conn}
}

func (tc *TCPConnection) Write(data []byte) (int, error) {
	return tc.conn.Write(data)
}

func (tc *TCPConnection) Read(buf []byte) (int, error) {
	return tc.conn.Read(buf)
}

func (tc *TCPConnection) Close() error {
	return tc.conn.Close()
}

func (tc *TCPConnection) RemoteAddr() net.Addr {
	return tc.conn.RemoteAddr()
}

func (tc *TCPConnection) SetWriteDeadline(t time.Time) error {
	return tc.conn.SetWriteDeadline(t)
}

// WebSocketSubprotocol is the subprotocol for IRC over WebSocket with one
// line per text frame.
const WebSocketSubprotocol = "text.ircv3.net"

// WebSocketConnection carries IRC lines over a client-side WebSocket.
//
// Each text frame holds one line without CRLF. Read re-adds the CRLF so
// the byte stream looks like a TCP one; Write strips it and sends one
// frame per line. Every frame, including replies to control frames, goes
// out in a single locked write.
type WebSocketConnection struct {
	conn    net.Conn
	reader  *wsutil.Reader
	writeMu sync.Mutex
	pending []byte
}

// NewWebSocketConnection wraps a connection that finished the WebSocket
// handshake. br holds bytes the server sent right after the handshake and
// may be nil.
func NewWebSocketConnection(conn net.Conn, br *bufio.Reader) *WebSocketConnection {
	var src io.Reader = conn
	if br != nil {
		src = br
	}
	wc := &WebSocketConnection{conn: conn}
	wc.reader = &wsutil.Reader{
		Source:         src,
		State:          ws.StateClientSide,
		OnIntermediate: wc.handleControl,
	}
	return wc
}

func (wc *WebSocketConnection) Write(data []byte) (int, error) {
	for _, line := range bytes.Split(data, []byte("\r\n")) {
		if len(line) == 0 {
			continue
		}
		var frame bytes.Buffer
		if err := wsutil.WriteClientText(&frame, line); err != nil {
			return 0, err
		}
		if err := wc.writeFrame(frame.Bytes()); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (wc *WebSocketConnection) Read(buf []byte) (int, error) {
	for len(wc.pending) == 0 {
		hdr, err := wc.reader.NextFrame()
		if err != nil {
			return 0, err
		}
		if hdr.OpCode.IsControl() {
			if err := wc.handleControl(hdr, wc.reader); err != nil {
				return 0, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := wc.reader.Discard(); err != nil {
				return 0, err
			}
			continue
		}
		data, err := io.ReadAll(wc.reader)
		if err != nil {
			return 0, err
		}
		wc.pending = append(bytes.TrimRight(data, "\r\n"), '\r', '\n')
	}

	n := copy(buf, wc.pending)
	wc.pending = wc.pending[n:]
	return n, nil
}

// handleControl answers ping and close frames through the locked writer.
func (wc *WebSocketConnection) handleControl(hdr ws.Header, r io.Reader) error {
	var reply bytes.Buffer
	err := wsutil.ControlFrameHandler(&reply, ws.StateClientSide)(hdr, r)
	if reply.Len() > 0 {
		if werr := wc.writeFrame(reply.Bytes()); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func (wc *WebSocketConnection) writeFrame(frame []byte) error {
	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()
	_, err := wc.conn.Write(frame)
	return err
}

func (wc *WebSocketConnection) Close() error {
	var frame bytes.Buffer
	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
	if err := wsutil.WriteClientMessage(&frame, ws.OpClose, body); err == nil {
		_ = wc.writeFrame(frame.Bytes())
	}
	return wc.conn.Close()
}

func (wc *WebSocketConnection) RemoteAddr() net.Addr {
	return wc.conn.RemoteAddr()
}

func (wc *WebSocketConnection) SetWriteDeadline(t time.Time) error {
	return wc.conn.SetWriteDeadline(t)
}
