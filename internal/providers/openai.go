package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

const (
	openaiDefaultModel = "gpt-4o-mini"
	defaultTimeout     = 120 * time.Second
)

// OpenAIProvider talks to any OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	name         string
	client       *openai.Client
	defaultModel string
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

// NewOpenAIProvider creates a provider. apiBase and defaultModel may be empty.
func NewOpenAIProvider(name, apiKey, apiBase, defaultModel string) *OpenAIProvider {
	return NewOpenAIProviderWithHeaders(name, apiKey, apiBase, defaultModel, nil)
}

// NewOpenAIProviderWithHeaders is NewOpenAIProvider plus extra headers on every request.
func NewOpenAIProviderWithHeaders(name, apiKey, apiBase, defaultModel string, headers http.Header) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		cfg.BaseURL = strings.TrimRight(apiBase, "/")
	}
	var rt http.RoundTripper = http.DefaultTransport
	if len(headers) > 0 {
		rt = headerTransport{rt: rt, headers: headers}
	}
	cfg.HTTPClient = &http.Client{Transport: rt, Timeout: defaultTimeout}

	if defaultModel == "" {
		defaultModel = openaiDefaultModel
	}
	return &OpenAIProvider{
		name:         name,
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
	}
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	oaReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if v, ok := floatOpt(req.Options, OptTemperature); ok {
		oaReq.Temperature = v
	}
	if v, ok := intOpt(req.Options, OptMaxTokens); ok {
		oaReq.MaxTokens = v
	}

	resp, err := p.client.CreateChatCompletion(ctx, oaReq)
	if err != nil {
		return nil, fmt.Errorf("%s: chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmptyCompletion)
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Transcribe sends audio to the Whisper endpoint.
func (p *OpenAIProvider) Transcribe(ctx context.Context, req TranscribeRequest) (string, error) {
	filename := req.Filename
	if filename == "" {
		filename = "audio.webm"
	}
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   req.Audio,
		Language: req.Language,
	})
	if err != nil {
		return "", fmt.Errorf("%s: transcription: %w", p.name, err)
	}
	return resp.Text, nil
}

func toOpenAIMessages(msgs []protocol.DialogMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openai.ChatCompletionMessage{Role: string(m.Role)}
		if !m.Content.IsMultipart() {
			om.Content = m.Content.Text
			out = append(out, om)
			continue
		}
		for _, part := range m.Content.Parts {
			switch part.Type {
			case protocol.PartTypeText:
				om.MultiContent = append(om.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: part.Text,
				})
			case protocol.PartTypeImageURL:
				if part.ImageURL == nil {
					continue
				}
				om.MultiContent = append(om.MultiContent, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: part.ImageURL.URL, Detail: openai.ImageURLDetailAuto},
				})
			}
		}
		out = append(out, om)
	}
	return out
}
