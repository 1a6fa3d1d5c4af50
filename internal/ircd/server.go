package ircd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Subprotocol is the WebSocket subprotocol the server accepts.
const Subprotocol = "text.ircv3.net"

var upgrader = websocket.Upgrader{
	Subprotocols: []string{Subprotocol},
	CheckOrigin: func(r *http.Request) bool {
		return true // loopback test server
	},
}

// Config holds the listen addresses. An empty address disables that
// listener.
type Config struct {
	TCPAddr       string
	WebSocketAddr string
	// WebSocketPath is the HTTP path of the WebSocket endpoint.
	WebSocketPath string
	// PingInterval sends a keepalive check to every client this often.
	// Zero disables it.
	PingInterval time.Duration
}

// Server accepts TCP and WebSocket connections and hands them to a Hub.
type Server struct {
	cfg Config
	hub *Hub
	log *slog.Logger

	tcpListener net.Listener
	wsListener  net.Listener
	httpServer  *http.Server

	mu    sync.Mutex
	conns map[Conn]bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewServer creates a Server that uses the provided Hub.
func NewServer(cfg Config, hub *Hub) *Server {
	if cfg.WebSocketPath == "" {
		cfg.WebSocketPath = "/"
	}
	return &Server{
		cfg:   cfg,
		hub:   hub,
		log:   hub.log,
		conns: make(map[Conn]bool),
		quit:  make(chan struct{}),
	}
}

// Start opens the configured listeners and serves them in the background.
func (s *Server) Start() error {
	if s.cfg.TCPAddr == "" && s.cfg.WebSocketAddr == "" {
		return errors.New("no listen address configured")
	}

	if s.cfg.TCPAddr != "" {
		l, err := net.Listen("tcp", s.cfg.TCPAddr)
		if err != nil {
			return fmt.Errorf("failed to start TCP server: %w", err)
		}
		s.tcpListener = l
		s.log.Info("TCP server started", "addr", l.Addr().String())

		s.wg.Add(1)
		go s.acceptTCP()
	}

	if s.cfg.WebSocketAddr != "" {
		l, err := net.Listen("tcp", s.cfg.WebSocketAddr)
		if err != nil {
			if s.tcpListener != nil {
				s.tcpListener.Close()
			}
			return fmt.Errorf("failed to start WebSocket server: %w", err)
		}
		s.wsListener = l

		mux := http.NewServeMux()
		mux.HandleFunc(s.cfg.WebSocketPath, s.handleWebSocket)
		s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		s.log.Info("WebSocket server started", "addr", l.Addr().String(), "path", s.cfg.WebSocketPath)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("WebSocket server failed", "error", err)
			}
		}()
	}

	if s.cfg.PingInterval > 0 {
		s.wg.Add(1)
		go s.pingLoop()
	}

	return nil
}

// Stop closes the listeners and every client connection, then waits for
// all goroutines to finish.
func (s *Server) Stop() {
	close(s.quit)

	if s.tcpListener != nil {
		s.tcpListener.Close()
	}
	if s.httpServer != nil {
		s.httpServer.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Addr returns the TCP listening address.
func (s *Server) Addr() string {
	if s.tcpListener != nil {
		return s.tcpListener.Addr().String()
	}
	return ""
}

// WebSocketAddr returns the WebSocket listening address.
func (s *Server) WebSocketAddr() string {
	if s.wsListener != nil {
		return s.wsListener.Addr().String()
	}
	return ""
}

// Hub returns the hub the server feeds.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) acceptTCP() {
	defer s.wg.Done()
	for {
		conn, err := s.tcpListener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				s.log.Warn("failed to accept TCP connection", "error", err)
				continue
			}
		}
		s.serve(NewTCPConn(conn))
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade connection", "error", err)
		return
	}
	s.serve(NewWSConn(conn, r.RemoteAddr))
}

// serve registers conn with the hub and starts its read and write loops.
func (s *Server) serve(conn Conn) {
	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		conn.Close()
		return
	default:
	}
	s.conns[conn] = true
	s.mu.Unlock()

	client := NewClient(conn)
	s.hub.Register(client)
	s.log.Debug("client connected", "remote", conn.RemoteAddr())

	done := make(chan struct{})
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.hub.HandleClient(context.Background(), client)

		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()
	go func() {
		defer s.wg.Done()
		s.writeLoop(client, done)
	}()
}

func (s *Server) writeLoop(client *Client, done <-chan struct{}) {
	for {
		select {
		case line := <-client.Outgoing:
			if err := client.Conn.Write(context.Background(), []byte(line+"\r\n")); err != nil {
				s.log.Debug("failed to write to client", "error", err)
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ticker.C:
			s.hub.Ping(s.hub.name + "-" + strconv.Itoa(n))
		case <-s.quit:
			return
		}
	}
}
