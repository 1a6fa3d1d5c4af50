package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/toy-irc-chat/internal/client"
)

// wsPeer is a gorilla server side for one WebSocketConnection.
type wsPeer struct {
	conns  chan *websocket.Conn
	pongs  chan string
	server *httptest.Server
}

func newWSPeer(t *testing.T) *wsPeer {
	t.Helper()
	p := &wsPeer{
		conns: make(chan *websocket.Conn, 1),
		pongs: make(chan string, 1),
	}
	upgrader := websocket.Upgrader{Subprotocols: []string{client.WebSocketSubprotocol}}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.SetPongHandler(func(data string) error {
			p.pongs <- data
			return nil
		})
		p.conns <- conn
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *wsPeer) dial(t *testing.T) (*client.WebSocketConnection, *websocket.Conn) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(p.server.URL, "http")
	d := ws.Dialer{Protocols: []string{client.WebSocketSubprotocol}}
	conn, br, _, err := d.Dial(context.Background(), url)
	require.NoError(t, err)

	wc := client.NewWebSocketConnection(conn, br)
	t.Cleanup(func() { wc.Close() })

	select {
	case server := <-p.conns:
		return wc, server
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept")
		return nil, nil
	}
}

func TestWebSocketConnection_WriteOneFramePerLine(t *testing.T) {
	wc, server := newWSPeer(t).dial(t)

	n, err := wc.Write([]byte("NICK alice\r\nUSER alice 0 * :Alice\r\n"))
	require.NoError(t, err)
	assert.Equal(t, len("NICK alice\r\nUSER alice 0 * :Alice\r\n"), n)

	require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
	for _, want := range []string{"NICK alice", "USER alice 0 * :Alice"} {
		typ, data, err := server.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, typ)
		assert.Equal(t, want, string(data))
	}
}

func TestWebSocketConnection_ReadAddsCRLF(t *testing.T) {
	wc, server := newWSPeer(t).dial(t)

	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("PING :abc")))
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(":srv NOTICE * :hi\r\n")))

	var got strings.Builder
	buf := make([]byte, 4)
	want := "PING :abc\r\n:srv NOTICE * :hi\r\n"
	for got.Len() < len(want) {
		n, err := wc.Read(buf)
		require.NoError(t, err)
		got.Write(buf[:n])
	}
	assert.Equal(t, want, got.String())
}

func TestWebSocketConnection_AnswersPing(t *testing.T) {
	peer := newWSPeer(t)
	wc, server := peer.dial(t)

	// The pong handler runs inside ReadMessage on the server side.
	go func() {
		for {
			if _, _, err := server.ReadMessage(); err != nil {
				return
			}
		}
	}()

	require.NoError(t, server.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(time.Second)))
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("after ping")))

	buf := make([]byte, 64)
	n, err := wc.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "after ping\r\n", string(buf[:n]))

	select {
	case data := <-peer.pongs:
		assert.Equal(t, "keepalive", data)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong received")
	}
}

func TestWebSocketConnection_CloseSendsCloseFrame(t *testing.T) {
	wc, server := newWSPeer(t).dial(t)

	require.NoError(t, wc.Close())

	require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := server.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
