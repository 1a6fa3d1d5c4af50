package ircd

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/omochice/toy-irc-chat/internal/logger"
	"github.com/omochice/toy-irc-chat/pkg/protocol"
)

// DefaultName is the server name used as the prefix of server replies.
const DefaultName = "toy-ircd"

// DefaultReceivedLimit is how many received lines a Hub keeps by default.
const DefaultReceivedLimit = 1024

// Client is one connected user.
type Client struct {
	Conn     Conn
	Outgoing chan string

	mu         sync.RWMutex
	nick       string
	registered bool
	channels   map[string]bool
}

// NewClient creates a client for conn.
func NewClient(conn Conn) *Client {
	return &Client{
		Conn:     conn,
		Outgoing: make(chan string, 64),
		channels: make(map[string]bool),
	}
}

// Nick returns the client's current nickname.
func (c *Client) Nick() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nick
}

func (c *Client) prefix() string {
	nick := c.Nick()
	return nick + "!" + nick + "@localhost"
}

func (c *Client) inChannel(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// Hub keeps every connected client and routes lines between them. TCP and
// WebSocket listeners share one Hub.
type Hub struct {
	name string
	log  *slog.Logger

	mu       sync.RWMutex
	clients  map[*Client]bool
	received []string
	keep     int
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithName sets the server name.
func WithName(name string) HubOption {
	return func(h *Hub) {
		h.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		h.log = l
	}
}

// WithReceivedLimit keeps at most n received lines for Received, dropping
// the oldest first. Zero or less turns recording off.
func WithReceivedLimit(n int) HubOption {
	return func(h *Hub) {
		h.keep = n
	}
}

// NewHub creates a new Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		name:    DefaultName,
		log:     logger.Discard(),
		clients: make(map[*Client]bool),
		keep:    DefaultReceivedLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Received returns the most recent lines the hub has read from any
// client, oldest first.
func (h *Hub) Received() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.received...)
}

// Broadcast sends a raw line to every client.
func (h *Hub) Broadcast(line string) {
	for _, c := range h.snapshot() {
		h.deliver(c, line)
	}
}

// Ping sends a keepalive check carrying token to every registered client.
func (h *Hub) Ping(token string) {
	for _, c := range h.snapshot() {
		if c.isRegistered() {
			h.deliver(c, "PING :"+token)
		}
	}
}

// HandleClient reads from the client until it quits or disconnects. It
// unregisters the client and closes its connection before returning.
func (h *Hub) HandleClient(ctx context.Context, client *Client) {
	defer func() {
		h.Unregister(client)
		client.Conn.Close()
	}()

	framer := protocol.NewFramer()
	for {
		data, err := client.Conn.Read(ctx)
		if err != nil {
			h.log.Debug("client disconnected", "remote", client.Conn.RemoteAddr(), "error", err)
			h.part(client, "QUIT :Connection closed")
			return
		}
		for _, line := range framer.Feed(data) {
			h.record(string(line))
			if quit := h.dispatch(client, protocol.ParseMessage(string(line))); quit {
				return
			}
		}
	}
}

func (h *Hub) record(line string) {
	if h.keep <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.received) >= h.keep {
		n := copy(h.received, h.received[len(h.received)-h.keep+1:])
		h.received = h.received[:n]
	}
	h.received = append(h.received, line)
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// deliver queues line for client, dropping it when the client is too slow.
func (h *Hub) deliver(client *Client, line string) {
	select {
	case client.Outgoing <- line:
	default:
		h.log.Warn("client too slow, dropping line", "nick", client.Nick())
	}
}

func (h *Hub) reply(client *Client, code string, params ...string) {
	nick := client.Nick()
	if nick == "" {
		nick = "*"
	}
	msg := protocol.Message{
		Prefix:  h.name,
		Command: code,
		Params:  append([]string{nick}, params...),
	}
	h.deliver(client, msg.Marshal())
}

// dispatch handles one message and reports whether the client quit.
func (h *Hub) dispatch(client *Client, msg *protocol.Message) bool {
	switch msg.Command {
	case "":
		return false
	case "NICK":
		h.handleNick(client, msg)
	case "USER":
		h.handleUser(client)
	case "PING":
		token := h.name
		if len(msg.Params) > 0 {
			token = msg.Params[0]
		}
		h.deliver(client, protocol.Message{Prefix: h.name, Command: "PONG", Params: []string{h.name, token}}.Marshal())
	case "PONG":
	case "JOIN":
		h.handleJoin(client, msg)
	case "PART":
		h.handlePart(client, msg)
	case "PRIVMSG":
		h.handlePrivmsg(client, msg)
	case "LIST":
		h.handleList(client)
	case "QUIT":
		reason := "Quit"
		if len(msg.Params) > 0 {
			reason = msg.Params[0]
		}
		h.part(client, protocol.Message{Command: "QUIT", Params: []string{reason}}.Marshal())
		return true
	default:
		h.reply(client, "421", msg.Command, "Unknown command")
	}
	return false
}

func (h *Hub) handleNick(client *Client, msg *protocol.Message) {
	if len(msg.Params) == 0 {
		h.reply(client, "431", "No nickname given")
		return
	}
	nick := msg.Params[0]
	if other := h.find(nick); other != nil && other != client {
		h.reply(client, "433", nick, "Nickname is already in use")
		return
	}

	old := client.prefix()
	client.mu.Lock()
	hadNick := client.nick != ""
	client.nick = nick
	client.mu.Unlock()

	if hadNick && client.isRegistered() {
		h.deliver(client, protocol.Message{Prefix: old, Command: "NICK", Params: []string{nick}}.Marshal())
	}
}

func (c *Client) isRegistered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

func (h *Hub) handleUser(client *Client) {
	client.mu.Lock()
	already := client.registered
	client.registered = true
	client.mu.Unlock()
	if already {
		h.reply(client, "462", "You may not reregister")
		return
	}
	h.log.Info("client registered", "nick", client.Nick(), "remote", client.Conn.RemoteAddr())
	h.reply(client, "001", "Welcome to "+h.name+" "+client.Nick())
}

func (h *Hub) handleJoin(client *Client, msg *protocol.Message) {
	if len(msg.Params) == 0 {
		h.reply(client, "461", "JOIN", "Not enough parameters")
		return
	}
	for _, channel := range strings.Split(msg.Params[0], ",") {
		if !strings.HasPrefix(channel, "#") {
			h.reply(client, "403", channel, "No such channel")
			continue
		}
		client.mu.Lock()
		client.channels[channel] = true
		client.mu.Unlock()

		line := protocol.Message{Prefix: client.prefix(), Command: "JOIN", Params: []string{channel}}.Marshal()
		for _, member := range h.members(channel) {
			h.deliver(member, line)
		}
	}
}

func (h *Hub) handlePart(client *Client, msg *protocol.Message) {
	if len(msg.Params) == 0 {
		h.reply(client, "461", "PART", "Not enough parameters")
		return
	}
	channel := msg.Params[0]
	if !client.inChannel(channel) {
		h.reply(client, "442", channel, "You're not on that channel")
		return
	}

	line := protocol.Message{Prefix: client.prefix(), Command: "PART", Params: []string{channel}}.Marshal()
	for _, member := range h.members(channel) {
		h.deliver(member, line)
	}
	client.mu.Lock()
	delete(client.channels, channel)
	client.mu.Unlock()
}

func (h *Hub) handlePrivmsg(client *Client, msg *protocol.Message) {
	if len(msg.Params) < 2 {
		h.reply(client, "412", "No text to send")
		return
	}
	target, text := msg.Params[0], msg.Params[1]
	line := protocol.Message{Prefix: client.prefix(), Command: "PRIVMSG", Params: []string{target, text}}.Marshal()

	if strings.HasPrefix(target, "#") {
		if !client.inChannel(target) {
			h.reply(client, "404", target, "Cannot send to channel")
			return
		}
		for _, member := range h.members(target) {
			if member != client {
				h.deliver(member, line)
			}
		}
		return
	}

	if strings.EqualFold(target, protocol.NickServ) {
		notice := protocol.Message{Prefix: protocol.NickServ, Command: "NOTICE", Params: []string{client.Nick(), "NickServ is not available on this server"}}
		h.deliver(client, notice.Marshal())
		return
	}

	other := h.find(target)
	if other == nil {
		h.reply(client, "401", target, "No such nick/channel")
		return
	}
	h.deliver(other, line)
}

func (h *Hub) handleList(client *Client) {
	counts := make(map[string]int)
	for _, c := range h.snapshot() {
		c.mu.RLock()
		for channel := range c.channels {
			counts[channel]++
		}
		c.mu.RUnlock()
	}
	channels := make([]string, 0, len(counts))
	for channel := range counts {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	h.reply(client, "321", "Channel", "Users  Name")
	for _, channel := range channels {
		h.reply(client, "322", channel, strconv.Itoa(counts[channel]), "")
	}
	h.reply(client, "323", "End of /LIST")
}

// part tells everyone sharing a channel with client that it left.
func (h *Hub) part(client *Client, quitLine string) {
	msg := protocol.ParseMessage(quitLine)
	msg.Prefix = client.prefix()
	line := msg.Marshal()

	seen := map[*Client]bool{client: true}
	client.mu.RLock()
	channels := make([]string, 0, len(client.channels))
	for channel := range client.channels {
		channels = append(channels, channel)
	}
	client.mu.RUnlock()

	for _, channel := range channels {
		for _, member := range h.members(channel) {
			if !seen[member] {
				seen[member] = true
				h.deliver(member, line)
			}
		}
	}
}

func (h *Hub) members(channel string) []*Client {
	var out []*Client
	for _, c := range h.snapshot() {
		if c.inChannel(channel) {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) find(nick string) *Client {
	for _, c := range h.snapshot() {
		if strings.EqualFold(c.Nick(), nick) {
			return c
		}
	}
	return nil
}
