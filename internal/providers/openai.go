// Package providers implements schema.LLMProvider backends. The OpenAI
// provider speaks to any OpenAI-compatible endpoint via a configurable base
// URL, covering the hosted API as well as local gateways.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/schema"
)

// OpenAIProvider is a schema.LLMProvider backed by go-openai.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	maxTokens    int
	temperature  float32
}

// NewOpenAIProvider builds a provider from the LLM configuration.
func NewOpenAIProvider(cfg config.LLMConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm.apiKey is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
	}, nil
}

// DefaultModel returns the configured model name.
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// Chat performs one blocking, tool-capable completion.
func (p *OpenAIProvider) Chat(ctx context.Context, msgs *schema.Messages, tools []schema.ToolDefinition, opts schema.ChatOptions) (*schema.LLMResponse, error) {
	req := p.buildRequest(msgs, opts)
	for _, td := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  json.RawMessage(td.Parameters),
			},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	out := &schema.LLMResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: schema.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				slog.Warn("unparseable tool call arguments", "tool", tc.Function.Name, "error", err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

// Stream performs a text-only streaming completion, calling onDelta for each
// fragment and returning the full accumulated text.
func (p *OpenAIProvider) Stream(ctx context.Context, msgs *schema.Messages, opts schema.ChatOptions, onDelta schema.StreamHandler) (string, error) {
	req := p.buildRequest(msgs, opts)
	req.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("open chat stream: %w", err)
	}
	defer stream.Close()

	var full []byte
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("receive chat stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full = append(full, delta...)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	return string(full), nil
}

func (p *OpenAIProvider) buildRequest(msgs *schema.Messages, opts schema.ChatOptions) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       p.defaultModel,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}

	for _, m := range msgs.Items {
		cm, ok := toAPIMessage(m)
		if !ok {
			continue
		}
		req.Messages = append(req.Messages, cm)
	}
	return req
}

func toAPIMessage(m schema.Message) (openai.ChatCompletionMessage, bool) {
	switch m.Role {
	case schema.RoleSystem:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content}, true
	case schema.RoleUser:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content}, true
	case schema.RoleAssistant:
		cm := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		return cm, true
	case schema.RoleTool:
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.ToolName,
		}, true
	default:
		// Audit-only roles never leave the process.
		return openai.ChatCompletionMessage{}, false
	}
}
