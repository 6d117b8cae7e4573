package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"google.golang.org/genai"

	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

const geminiDefaultModel = "gemini-2.5-flash"

// GeminiProvider calls the Gemini API through the genai SDK.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiProvider creates a provider. apiBase overrides the API endpoint when set.
func NewGeminiProvider(ctx context.Context, apiKey, apiBase, defaultModel string) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if apiBase != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: apiBase}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if defaultModel == "" {
		defaultModel = geminiDefaultModel
	}
	return &GeminiProvider{client: client, defaultModel: defaultModel}, nil
}

func (p *GeminiProvider) Name() string         { return "gemini" }
func (p *GeminiProvider) DefaultModel() string { return p.defaultModel }

func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	cfg := &genai.GenerateContentConfig{}
	if v, ok := floatOpt(req.Options, OptTemperature); ok {
		cfg.Temperature = genai.Ptr(v)
	}
	if v, ok := intOpt(req.Options, OptMaxTokens); ok {
		cfg.MaxOutputTokens = int32(v)
	}

	system, contents := toGeminiContents(req.Messages)
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}

	out := &ChatResponse{
		Content:      resp.Text(),
		FinishReason: string(resp.Candidates[0].FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// toGeminiContents splits out system messages and maps the rest to Gemini
// roles: assistant becomes model.
func toGeminiContents(msgs []protocol.DialogMessage) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case protocol.RoleSystem:
			system = append(system, m.Text())
		case protocol.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Text(), genai.RoleModel))
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: geminiParts(m)})
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func geminiParts(m protocol.DialogMessage) []*genai.Part {
	if !m.Content.IsMultipart() {
		return []*genai.Part{genai.NewPartFromText(m.Content.Text)}
	}
	var parts []*genai.Part
	for _, cp := range m.Content.Parts {
		switch cp.Type {
		case protocol.PartTypeText:
			parts = append(parts, genai.NewPartFromText(cp.Text))
		case protocol.PartTypeImageURL:
			if cp.ImageURL == nil {
				continue
			}
			if data, mimeType, ok := decodeDataURI(cp.ImageURL.URL); ok {
				parts = append(parts, genai.NewPartFromBytes(data, mimeType))
				continue
			}
			parts = append(parts, genai.NewPartFromURI(cp.ImageURL.URL, mimeFromURL(cp.ImageURL.URL)))
		}
	}
	return parts
}

// decodeDataURI parses "data:<mime>;base64,<payload>".
func decodeDataURI(uri string) ([]byte, string, bool) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", false
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", false
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", false
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	return data, mimeType, true
}

func mimeFromURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if dot := strings.LastIndexByte(u, '.'); dot >= 0 {
		if t := mime.TypeByExtension(u[dot:]); t != "" {
			return t
		}
	}
	return "image/jpeg"
}
