package display

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/omochice/toy-irc-chat/internal/client"
	"github.com/omochice/toy-irc-chat/internal/logger"
	"github.com/omochice/toy-irc-chat/pkg/protocol"
)

// KindRejected marks a rejected command in the stream.
const KindRejected = "rejected"

// Stream writes every entry as a length-delimited protobuf Struct, for
// piping the session into other tools.
type Stream struct {
	mu  sync.Mutex
	w   io.Writer
	log *slog.Logger
}

// NewStream creates a Stream presenter writing to w.
func NewStream(w io.Writer, log *slog.Logger) *Stream {
	if log == nil {
		log = logger.Discard()
	}
	return &Stream{w: w, log: log}
}

// Present implements client.Presenter.
func (s *Stream) Present(e client.Entry) {
	msg, err := e.Event.ToProto()
	if err != nil {
		s.log.Warn("failed to encode entry", "error", err)
		return
	}
	msg.Fields["at"] = structpb.NewStringValue(e.At.Format(time.RFC3339Nano))
	if e.Current != "" {
		msg.Fields["current"] = structpb.NewStringValue(e.Current)
	}
	s.write(msg)
}

// Reject implements client.Presenter.
func (s *Stream) Reject(err error) {
	s.write(&structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":  structpb.NewStringValue(KindRejected),
		"error": structpb.NewStringValue(err.Error()),
	}})
}

func (s *Stream) write(msg *structpb.Struct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := protodelim.MarshalTo(s.w, msg); err != nil {
		s.log.Warn("failed to write entry", "error", err)
	}
}

// StreamEntry is one decoded stream record.
type StreamEntry struct {
	Entry client.Entry
	// Error is set instead of Entry for rejected commands.
	Error string
}

// StreamReader decodes what a Stream wrote.
type StreamReader struct {
	r *bufio.Reader
}

// NewStreamReader creates a reader over r.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: bufio.NewReader(r)}
}

// Next returns the next record, or io.EOF at the end of the stream.
func (sr *StreamReader) Next() (StreamEntry, error) {
	msg := &structpb.Struct{}
	if err := protodelim.UnmarshalFrom(sr.r, msg); err != nil {
		if err == io.EOF {
			return StreamEntry{}, io.EOF
		}
		return StreamEntry{}, fmt.Errorf("failed to decode entry: %w", err)
	}

	fields := msg.GetFields()
	if fields["kind"].GetStringValue() == KindRejected {
		return StreamEntry{Error: fields["error"].GetStringValue()}, nil
	}

	var out StreamEntry
	var ev protocol.Event
	ev.FromProto(msg)
	out.Entry.Event = ev
	out.Entry.Current = fields["current"].GetStringValue()
	if at := fields["at"].GetStringValue(); at != "" {
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return StreamEntry{}, fmt.Errorf("invalid timestamp %q: %w", at, err)
		}
		out.Entry.At = t
	}
	return out, nil
}
