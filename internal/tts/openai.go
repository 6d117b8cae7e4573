package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements TTS via the OpenAI audio/speech API.
type OpenAIProvider struct {
	client *openai.Client
	model  string // default "gpt-4o-mini-tts"
	voice  string // default "alloy"
}

// OpenAIConfig configures the OpenAI TTS provider.
type OpenAIConfig struct {
	APIKey    string
	APIBase   string
	Model     string
	Voice     string
	TimeoutMs int
}

// NewOpenAIProvider creates an OpenAI TTS provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		oc.BaseURL = cfg.APIBase
	}
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 30000
	}
	oc.HTTPClient = &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond}

	p := &OpenAIProvider{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		voice:  cfg.Voice,
	}
	if p.model == "" {
		p.model = "gpt-4o-mini-tts"
	}
	if p.voice == "" {
		p.voice = "alloy"
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Synthesize calls POST {apiBase}/audio/speech.
func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, opts Options) (*SynthResult, error) {
	voice := opts.Voice
	if voice == "" {
		voice = p.voice
	}
	model := opts.Model
	if model == "" {
		model = p.model
	}
	format := opts.Format
	if format == "" {
		format = "mp3"
	}

	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(format),
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts request failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read openai tts response: %w", err)
	}

	ext, mime := formatInfo(format)
	return &SynthResult{Audio: audio, Extension: ext, MimeType: mime}, nil
}
