package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io"
	elevenLabsVoice   = "pMsXgVXv3BLzUgSXRplE"
	elevenLabsModel   = "eleven_multilingual_v2"
)

// elevenLabsFormats maps our format names to ElevenLabs output_format values.
var elevenLabsFormats = map[string]string{
	"mp3":  "mp3_44100_128",
	"opus": "opus_48000_64",
}

// ElevenLabsProvider narrates through the ElevenLabs text-to-speech API.
type ElevenLabsProvider struct {
	key   string
	base  string
	voice string
	model string
	httpc *http.Client
}

type ElevenLabsConfig struct {
	APIKey    string
	BaseURL   string
	VoiceID   string
	ModelID   string
	TimeoutMs int
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Warm, steady narration for bedtime stories.
var narratorSettings = voiceSettings{Stability: 0.6, SimilarityBoost: 0.75, Style: 0.2, UseSpeakerBoost: true}

// APIError is a non-200 answer from ElevenLabs. Message is the "detail"
// text when the body carries one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs tts error %d: %s", e.Status, e.Message)
}

func NewElevenLabsProvider(cfg ElevenLabsConfig) *ElevenLabsProvider {
	timeout := 30 * time.Second
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return &ElevenLabsProvider{
		key:   cfg.APIKey,
		base:  strings.TrimRight(orDefault(cfg.BaseURL, elevenLabsBaseURL), "/"),
		voice: orDefault(cfg.VoiceID, elevenLabsVoice),
		model: orDefault(cfg.ModelID, elevenLabsModel),
		httpc: &http.Client{Timeout: timeout},
	}
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts Options) (*SynthResult, error) {
	output, ok := elevenLabsFormats[opts.Format]
	if !ok {
		output = elevenLabsFormats["mp3"]
	}
	ext, mime := formatInfo(opts.Format)

	body, err := json.Marshal(elevenLabsRequest{
		Text:          text,
		ModelID:       orDefault(opts.Model, p.model),
		VoiceSettings: narratorSettings,
	})
	if err != nil {
		return nil, fmt.Errorf("encode elevenlabs request: %w", err)
	}

	u := p.base + "/v1/text-to-speech/" + url.PathEscape(orDefault(opts.Voice, p.voice)) +
		"?" + url.Values{"output_format": {output}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build elevenlabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", mime)
	req.Header.Set("xi-api-key", p.key)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read elevenlabs audio: %w", err)
	}
	return &SynthResult{Audio: audio, Extension: ext, MimeType: mime}, nil
}

// readAPIError accepts {"detail":"..."}, {"detail":{"message":"..."}} or any
// other body, which is kept as text.
func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}

	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &env) != nil || len(env.Detail) == 0 {
		return apiErr
	}
	var s string
	if json.Unmarshal(env.Detail, &s) == nil && s != "" {
		apiErr.Message = s
		return apiErr
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(env.Detail, &obj) == nil && obj.Message != "" {
		apiErr.Message = obj.Message
	}
	return apiErr
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
