package tts

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultMaxLength is the longest paragraph, in characters, that is sent for synthesis.
const DefaultMaxLength = 4096

// Manager owns the registered providers and applies the length cap, the
// voice mapping and the per-call timeout before delegating to a provider.
type Manager struct {
	mu           sync.RWMutex
	providers    map[string]Provider
	primary      string
	fallback     bool
	maxLength    int
	timeout      time.Duration
	format       string
	voices       map[string]string
	defaultVoice string
}

// ManagerConfig configures the TTS manager.
type ManagerConfig struct {
	Primary      string            // primary provider name
	Fallback     bool              // try the other providers when the primary fails
	MaxLength    int               // default DefaultMaxLength
	TimeoutMs    int               // default 30000
	Format       string            // default "mp3"
	Voices       map[string]string // product voice ID -> provider voice
	DefaultVoice string            // used when a product voice is empty or unmapped
}

// NewManager creates a TTS manager.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		providers:    make(map[string]Provider),
		primary:      cfg.Primary,
		fallback:     cfg.Fallback,
		maxLength:    cfg.MaxLength,
		timeout:      time.Duration(cfg.TimeoutMs) * time.Millisecond,
		format:       cfg.Format,
		voices:       cfg.Voices,
		defaultVoice: cfg.DefaultVoice,
	}
	if m.maxLength <= 0 {
		m.maxLength = DefaultMaxLength
	}
	if m.timeout <= 0 {
		m.timeout = 30 * time.Second
	}
	if m.format == "" {
		m.format = "mp3"
	}
	return m
}

// RegisterProvider adds a TTS provider.
func (m *Manager) RegisterProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.Name()] = p
	if m.primary == "" {
		m.primary = p.Name()
	}
}

// PrimaryProvider returns the primary provider name.
func (m *Manager) PrimaryProvider() string { return m.primary }

// MaxLength returns the length cap in characters.
func (m *Manager) MaxLength() int { return m.maxLength }

// HasProviders returns true if at least one provider is registered.
func (m *Manager) HasProviders() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.providers) > 0
}

// ResolveVoice maps a product voice ID to the provider voice.
// Unknown or empty IDs resolve to the default voice, which may itself be
// empty, leaving the provider default in effect.
func (m *Manager) ResolveVoice(productVoice string) string {
	if v, ok := m.voices[productVoice]; ok && v != "" {
		return v
	}
	return m.defaultVoice
}

// Synthesize converts text to audio with the primary provider.
// Text longer than MaxLength characters returns ErrInputTooLong, and text that is
// only markup returns ErrNothingToSay, both without any provider call.
func (m *Manager) Synthesize(ctx context.Context, text string, opts Options) (*SynthResult, error) {
	if n := utf8.RuneCountInString(text); n > m.maxLength {
		return nil, fmt.Errorf("%w: %d > %d characters", ErrInputTooLong, n, m.maxLength)
	}
	if opts.Format == "" {
		opts.Format = m.format
	}
	clean := strings.TrimSpace(stripMarkdown(text))
	if clean == "" {
		return nil, ErrNothingToSay
	}

	m.mu.RLock()
	primary, ok := m.providers[m.primary]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, m.primary)
	}

	result, err := m.call(ctx, primary, clean, opts)
	if err == nil || !m.fallback || ctx.Err() != nil {
		return result, err
	}
	slog.Warn("tts primary provider failed, trying fallback", "provider", m.primary, "error", err)
	return m.synthesizeFallback(ctx, clean, opts, err)
}

func (m *Manager) call(ctx context.Context, p Provider, text string, opts Options) (*SynthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return p.Synthesize(ctx, text, opts)
}

// synthesizeFallback tries the non-primary providers in name order.
// Provider-specific voice IDs do not carry over, so each fallback uses its own default voice.
func (m *Manager) synthesizeFallback(ctx context.Context, text string, opts Options, primaryErr error) (*SynthResult, error) {
	m.mu.RLock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		if name != m.primary {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	sort.Strings(names)

	opts.Voice = ""
	opts.Model = ""
	for _, name := range names {
		m.mu.RLock()
		p := m.providers[name]
		m.mu.RUnlock()
		result, err := m.call(ctx, p, text, opts)
		if err == nil {
			slog.Info("tts fallback succeeded", "provider", name)
			return result, nil
		}
		slog.Warn("tts fallback provider failed", "provider", name, "error", err)
	}
	return nil, fmt.Errorf("all tts providers failed: %w", primaryErr)
}

var (
	reCodeBlock  = regexp.MustCompile("(?s)```[^`]*```")
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reBold       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	reItalic     = regexp.MustCompile(`\*([^*]+)\*`)
	reBoldUnder  = regexp.MustCompile(`__([^_]+)__`)
	reItalUnder  = regexp.MustCompile(`_([^_]+)_`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reHeader     = regexp.MustCompile(`(?m)^#+\s+`)
	reBullet     = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
)

// stripMarkdown removes markup the model was told not to emit but sometimes does.
func stripMarkdown(text string) string {
	text = reCodeBlock.ReplaceAllString(text, "")
	text = reInlineCode.ReplaceAllString(text, "$1")
	text = reBold.ReplaceAllString(text, "$1")
	text = reItalic.ReplaceAllString(text, "$1")
	text = reBoldUnder.ReplaceAllString(text, "$1")
	text = reItalUnder.ReplaceAllString(text, "$1")
	text = reLink.ReplaceAllString(text, "$1")
	text = reHeader.ReplaceAllString(text, "")
	text = reBullet.ReplaceAllString(text, "")
	return text
}
