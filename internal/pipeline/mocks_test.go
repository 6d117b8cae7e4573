package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/nextlevelbuilder/storycast/internal/providers"
	"github.com/nextlevelbuilder/storycast/internal/tts"
	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

// --- Mocks ---

type mockCompleter struct {
	reply   string
	err     error
	panics  bool
	calls   int
	lastReq providers.ChatRequest
}

func (m *mockCompleter) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	m.calls++
	m.lastReq = req
	if m.panics {
		panic("completer exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	return &providers.ChatResponse{Content: m.reply, FinishReason: "stop"}, nil
}

type mockSynth struct {
	failAt int // 1-based call number that fails; 0 never fails
	err    error
	texts  []string
	voices []string
	onCall func(n int)
}

func (m *mockSynth) Synthesize(_ context.Context, text string, opts tts.Options) (*tts.SynthResult, error) {
	m.texts = append(m.texts, text)
	m.voices = append(m.voices, opts.Voice)
	n := len(m.texts)
	if m.onCall != nil {
		m.onCall(n)
	}
	if m.failAt == n {
		if m.err != nil {
			return nil, m.err
		}
		return nil, errors.New("tts upstream 500")
	}
	return &tts.SynthResult{Audio: []byte(text), Extension: "mp3", MimeType: "audio/mpeg"}, nil
}

// memorySink keeps a JSON round-tripped copy of every record, like a client would see.
type memorySink struct {
	records  []protocol.StreamRecord
	closed   int
	writeErr error
	failAt   int // 1-based write number that fails
	writes   int
}

func (s *memorySink) Write(_ context.Context, rec protocol.StreamRecord) error {
	s.writes++
	if s.failAt == s.writes {
		return s.writeErr
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var cp protocol.StreamRecord
	if err := json.Unmarshal(b, &cp); err != nil {
		return err
	}
	s.records = append(s.records, cp)
	return nil
}

func (s *memorySink) Close() error {
	s.closed++
	return nil
}

func (s *memorySink) progress() []protocol.StreamRecord {
	var out []protocol.StreamRecord
	for _, r := range s.records {
		if !r.IsTerminal() {
			out = append(out, r)
		}
	}
	return out
}

type archived struct {
	runID string
	index int
}

type mockArchiver struct {
	mu    sync.Mutex
	items []archived
}

func (m *mockArchiver) Archive(runID string, index int, _ *tts.SynthResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, archived{runID, index})
}

type mockFitter struct {
	url   string
	calls int
}

// Messages replaces every image url with m.url.
func (m *mockFitter) Messages(_ context.Context, msgs []protocol.DialogMessage) []protocol.DialogMessage {
	m.calls++
	out := make([]protocol.DialogMessage, len(msgs))
	for i, msg := range msgs {
		out[i] = msg
		if !msg.Content.IsMultipart() {
			continue
		}
		parts := make([]protocol.ContentPart, len(msg.Content.Parts))
		for j, p := range msg.Content.Parts {
			parts[j] = p
			if p.ImageURL != nil {
				parts[j].ImageURL = &protocol.ImageURL{URL: m.url}
			}
		}
		out[i].Content = protocol.Content{Parts: parts}
	}
	return out
}

// echoProvider returns the text it was given as the clip and fails on empty
// input, like hosted speech APIs do.
type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Synthesize(_ context.Context, text string, _ tts.Options) (*tts.SynthResult, error) {
	if text == "" {
		return nil, errors.New("input must not be empty")
	}
	return &tts.SynthResult{Audio: []byte(text), Extension: "mp3", MimeType: "audio/mpeg"}, nil
}

// panicOnTerminalSink panics while handling the terminal record.
type panicOnTerminalSink struct {
	terminal int
	closed   int
}

func (s *panicOnTerminalSink) Write(_ context.Context, rec protocol.StreamRecord) error {
	if rec.IsTerminal() {
		s.terminal++
		panic("terminal record exploded")
	}
	return nil
}

func (s *panicOnTerminalSink) Close() error {
	s.closed++
	return nil
}
