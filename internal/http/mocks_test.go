package http

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/nextlevelbuilder/storycast/internal/providers"
	"github.com/nextlevelbuilder/storycast/internal/store"
	"github.com/nextlevelbuilder/storycast/internal/tts"
)

// --- Mocks ---

type mockCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (m *mockCompleter) Chat(_ context.Context, _ providers.ChatRequest) (*providers.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &providers.ChatResponse{Content: m.reply, FinishReason: "stop"}, nil
}

type mockSynth struct {
	mu     sync.Mutex
	voices []string
	failAt int // 1-based call that fails; 0 never fails
}

func (m *mockSynth) Synthesize(_ context.Context, text string, opts tts.Options) (*tts.SynthResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = append(m.voices, opts.Voice)
	if m.failAt == len(m.voices) {
		return nil, errUpstream
	}
	return &tts.SynthResult{Audio: []byte(text), Extension: "mp3", MimeType: "audio/mpeg"}, nil
}

type mockUsers struct {
	mu       sync.Mutex
	profiles map[string]*store.UserProfile
	err      error
	counted  []string
}

func newMockUsers(profiles ...*store.UserProfile) *mockUsers {
	m := &mockUsers{profiles: map[string]*store.UserProfile{}}
	for _, p := range profiles {
		m.profiles[p.Identity] = p
	}
	return m
}

func (m *mockUsers) GetUser(_ context.Context, identity string) (*store.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[identity]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockUsers) UpsertUser(_ context.Context, u *store.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[u.Identity] = u
	return nil
}

func (m *mockUsers) IncrementStoryCount(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counted = append(m.counted, identity)
	return nil
}

func (m *mockUsers) Close() error { return nil }

func (m *mockUsers) storyCounts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.counted...)
}

type mockVoices map[string]string

func (v mockVoices) ResolveVoice(productVoice string) string {
	if pv, ok := v[productVoice]; ok {
		return pv
	}
	return v[""]
}

type mockLimiter struct {
	allow bool
	retry time.Duration
	keys  []string
}

func (m *mockLimiter) Allow(key string) (bool, time.Duration) {
	m.keys = append(m.keys, key)
	return m.allow, m.retry
}

type mockTranscriber struct {
	text     string
	err      error
	filename string
	language string
	audio    string
}

func (m *mockTranscriber) Transcribe(_ context.Context, req providers.TranscribeRequest) (string, error) {
	m.filename = req.Filename
	m.language = req.Language
	b, _ := io.ReadAll(req.Audio)
	m.audio = string(b)
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

var errUpstream = errors.New("upstream exploded")
