package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ArkProvider implements Provider on top of an eino chat model backed by
// Volcengine Ark. The Ark wrapper has no native structured output switch,
// so the JSON requirement travels in the system prompt and the reply is
// validated like every other backend.
type ArkProvider struct {
	chat  model.BaseChatModel
	model string
}

// NewArkProvider creates a new Ark provider.
func NewArkProvider(ctx context.Context, cfg ArkConfig) (*ArkProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ark API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ark model is required")
	}

	chat, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Region:  cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create Ark chat model: %w", err)
	}

	return &ArkProvider{chat: chat, model: cfg.Model}, nil
}

func (p *ArkProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}

	msg, err := p.chat.Generate(ctx, buildArkMessages(req), opts...)
	if err != nil {
		return nil, &ErrProviderUnavailable{Err: err}
	}
	if msg == nil {
		return nil, &ErrEmptyResponse{Model: p.model}
	}
	if meta := msg.ResponseMeta; meta != nil && meta.FinishReason == "length" {
		return nil, &ErrMaxTokensExceeded{Content: json.RawMessage(msg.Content)}
	}

	content, err := replyContent(p.model, msg.Content, req.Schema)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Content:    content,
		Model:      p.model,
		StopReason: "end",
	}
	if meta := msg.ResponseMeta; meta != nil && meta.Usage != nil {
		resp.Usage = Usage{
			InputTokens:  meta.Usage.PromptTokens,
			OutputTokens: meta.Usage.CompletionTokens,
			TotalTokens:  meta.Usage.TotalTokens,
		}
	}
	return resp, nil
}

func (p *ArkProvider) ModelID() string {
	return p.model
}

func buildArkMessages(req Request) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(req.Messages)+1)

	system := req.System
	if req.Schema != nil {
		def, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			system += "\n\nRespond with a single JSON object (no prose, no code fences) matching this JSON Schema:\n" + string(def)
		}
	}
	if system != "" {
		msgs = append(msgs, schema.SystemMessage(system))
	}

	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
			continue
		}
		msgs = append(msgs, schema.UserMessage(m.Content))
	}
	return msgs
}
