package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

// ndjsonSink writes stream records as newline-delimited JSON, flushing after
// each line. Headers go out with the first record or on Close.
type ndjsonSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	enc     *json.Encoder

	mu      sync.Mutex
	started bool
	closed  bool
	lines   int
}

func newNDJSONSink(w http.ResponseWriter) *ndjsonSink {
	f, _ := w.(http.Flusher)
	return &ndjsonSink{w: w, flusher: f, enc: json.NewEncoder(w)}
}

func (s *ndjsonSink) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", protocol.ContentTypeStream)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)
}

// Write encodes one record and flushes it to the client.
func (s *ndjsonSink) Write(ctx context.Context, rec protocol.StreamRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("ndjson sink closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.start()
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	s.lines++
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Close ends the stream. An empty stream still gets the 200 headers.
func (s *ndjsonSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.start()
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Lines returns the number of records written.
func (s *ndjsonSink) Lines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}
