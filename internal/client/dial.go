package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gobwas/ws"
	"golang.org/x/net/proxy"

	"github.com/omochice/toy-irc-chat/internal/config"
)

// DefaultDialTimeout bounds connecting, including TLS and WebSocket
// handshakes.
const DefaultDialTimeout = 30 * time.Second

// Dialer opens the connection a session runs on.
type Dialer interface {
	Dial(ctx context.Context, cfg config.Config) (Connection, error)
}

// NetDialer dials plain TCP, TLS or WebSocket connections, optionally
// through a SOCKS5 proxy.
type NetDialer struct {
	Timeout time.Duration
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Dial implements Dialer.
func (d *NetDialer) Dial(ctx context.Context, cfg config.Config) (Connection, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dial, err := netDialer(cfg.Proxy, timeout)
	if err != nil {
		return nil, err
	}

	if cfg.Transport == config.TransportWebSocket {
		return dialWebSocket(ctx, cfg, dial)
	}
	return dialTCP(ctx, cfg, dial)
}

func netDialer(proxyURL string, timeout time.Duration) (dialFunc, error) {
	direct := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	if proxyURL == "" {
		return direct.DialContext, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	pd, err := proxy.FromURL(u, direct)
	if err != nil {
		return nil, fmt.Errorf("failed to set up proxy: %w", err)
	}
	if cd, ok := pd.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return pd.Dial(network, addr)
	}, nil
}

func tlsConfig(cfg config.Config) *tls.Config {
	return &tls.Config{
		ServerName:         cfg.Server,
		InsecureSkipVerify: cfg.TLSInsecure,
		MinVersion:         tls.VersionTLS12,
	}
}

func dialTCP(ctx context.Context, cfg config.Config, dial dialFunc) (Connection, error) {
	conn, err := dial(ctx, "tcp", cfg.State().Address())
	if err != nil {
		return nil, err
	}

	if cfg.TLS {
		tlsConn := tls.Client(conn, tlsConfig(cfg))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls handshake: %w", err)
		}
		conn = tlsConn
	}

	return NewTCPConnection(conn), nil
}

func dialWebSocket(ctx context.Context, cfg config.Config, dial dialFunc) (Connection, error) {
	u := url.URL{Scheme: "ws", Host: cfg.State().Address(), Path: cfg.Path}
	if cfg.TLS {
		u.Scheme = "wss"
	}

	d := ws.Dialer{
		Protocols: []string{WebSocketSubprotocol},
		NetDial:   dial,
		TLSConfig: tlsConfig(cfg),
	}
	conn, br, _, err := d.Dial(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}

	return NewWebSocketConnection(conn, br), nil
}
