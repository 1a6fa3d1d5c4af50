package client_test

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omochice/toy-irc-chat/internal/client"
	"github.com/omochice/toy-irc-chat/internal/config"
)

// fakeConn is an in-memory Connection. The test plays the server by
// writing to it with send and reading what the client wrote with lines.
type fakeConn struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu     sync.Mutex
	writes []string

	inFlight atomic.Int32
	overlap  atomic.Bool
	closes   atomic.Int32
	closed   atomic.Bool

	// writeDelay widens the window in which overlapping writes would be seen.
	writeDelay time.Duration

	// onWrite, when set, runs before each write and can fail it.
	onWrite func(data string) error
}

func newFakeConn() *fakeConn {
	r, w := io.Pipe()
	return &fakeConn{r: r, w: w}
}

func (f *fakeConn) Read(buf []byte) (int, error) {
	return f.r.Read(buf)
}

func (f *fakeConn) Write(data []byte) (int, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)

	if f.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	if f.onWrite != nil {
		if err := f.onWrite(string(data)); err != nil {
			return 0, err
		}
	}
	if f.writeDelay > 0 {
		time.Sleep(f.writeDelay)
	}

	f.mu.Lock()
	f.writes = append(f.writes, string(data))
	f.mu.Unlock()
	return len(data), nil
}

func (f *fakeConn) Close() error {
	f.closes.Add(1)
	f.closed.Store(true)
	return f.r.Close()
}

func (f *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6667}
}

// send delivers raw bytes from the server side.
func (f *fakeConn) send(data string) error {
	_, err := f.w.Write([]byte(data))
	return err
}

// hangUp simulates the server closing the connection.
func (f *fakeConn) hangUp() {
	f.w.Close()
}

// rawWrites returns every Write call made by the client.
func (f *fakeConn) rawWrites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// lines returns the written lines without CRLF.
func (f *fakeConn) lines() []string {
	var out []string
	for _, w := range f.rawWrites() {
		out = append(out, strings.TrimSuffix(w, "\r\n"))
	}
	return out
}

func (f *fakeConn) count(line string) int {
	n := 0
	for _, l := range f.lines() {
		if l == line {
			n++
		}
	}
	return n
}

type fakeDialer struct {
	conn  client.Connection
	err   error
	calls atomic.Int32

	// When dialing is non-nil, Dial signals it and then waits for release.
	dialing chan struct{}
	release chan struct{}
}

func (d *fakeDialer) Dial(_ context.Context, _ config.Config) (client.Connection, error) {
	d.calls.Add(1)
	if d.dialing != nil {
		close(d.dialing)
		<-d.release
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// recorder is a Presenter that keeps everything it is given.
type recorder struct {
	mu      sync.Mutex
	entries []client.Entry
	rejects []error

	// onPresent runs before an entry is recorded.
	onPresent func(client.Entry)
}

func (r *recorder) Present(e client.Entry) {
	if r.onPresent != nil {
		r.onPresent(e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recorder) Reject(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejects = append(r.rejects, err)
}

func (r *recorder) presented() []client.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]client.Entry(nil), r.entries...)
}

func (r *recorder) rejected() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.rejects...)
}

// chanInput is an Input fed from a channel. Closing lines acts like the
// operator pressing Ctrl-D.
type chanInput struct {
	lines   chan string
	done    chan struct{}
	once    sync.Once
	prompts chan string
}

func newChanInput() *chanInput {
	return &chanInput{
		lines:   make(chan string),
		done:    make(chan struct{}),
		prompts: make(chan string, 64),
	}
}

func (in *chanInput) ReadLine(prompt string) (string, error) {
	select {
	case in.prompts <- prompt:
	default:
	}
	select {
	case line, ok := <-in.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-in.done:
		return "", io.EOF
	}
}

func (in *chanInput) Close() error {
	in.once.Do(func() { close(in.done) })
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Server:    "irc.example.net",
		Port:      6667,
		Nick:      "alice",
		Channel:   "#test",
		Realname:  "Alice",
		Transport: config.TransportTCP,
	}
}
