package providers

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

const (
	dashscopeDefaultBase        = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
	dashscopeDefaultModel       = "qwen3-max"
	dashscopeDefaultVisionModel = "qwen-vl-max"
)

// DashScopeProvider wraps OpenAIProvider to handle DashScope-specific behaviors.
// The text models reject image parts, so requests that carry an image are
// routed to the vision model unless the caller pinned a model.
type DashScopeProvider struct {
	*OpenAIProvider
	visionModel string
}

func NewDashScopeProvider(apiKey, apiBase, defaultModel, visionModel string) *DashScopeProvider {
	if apiBase == "" {
		apiBase = dashscopeDefaultBase
	}
	if defaultModel == "" {
		defaultModel = dashscopeDefaultModel
	}
	if visionModel == "" {
		visionModel = dashscopeDefaultVisionModel
	}
	return &DashScopeProvider{
		OpenAIProvider: NewOpenAIProvider("dashscope", apiKey, apiBase, defaultModel),
		visionModel:    visionModel,
	}
}

func (p *DashScopeProvider) Name() string { return "dashscope" }

func (p *DashScopeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" && hasImage(req.Messages) {
		slog.Debug("dashscope: image present, using vision model", "model", p.visionModel)
		req.Model = p.visionModel
	}
	return p.OpenAIProvider.Chat(ctx, req)
}

// Transcribe is not offered by the DashScope compatible-mode API.
func (p *DashScopeProvider) Transcribe(context.Context, TranscribeRequest) (string, error) {
	return "", ErrTranscriptionUnsupported
}

func hasImage(msgs []protocol.DialogMessage) bool {
	for _, m := range msgs {
		if len(m.ImageURLs()) > 0 {
			return true
		}
	}
	return false
}
