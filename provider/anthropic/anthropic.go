package anthropic_provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/N9work/CrewAi-Project/internal/agent/core"
)

// Client runs stage work on the Anthropic Messages API.
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	logger      *zap.Logger
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewAnthropicClient creates a Messages API client. Extra request options
// (base URL, retries) are passed to the SDK unchanged.
func NewAnthropicClient(apiKey, model string, temperature float64, maxTokens int, timeout time.Duration, reqOpts []option.RequestOption, opts ...Option) *Client {
	base := []option.RequestOption{option.WithAPIKey(apiKey)}
	if timeout > 0 {
		base = append(base, option.WithRequestTimeout(timeout))
	}
	c := &Client{
		client:      anthropic.NewClient(append(base, reqOpts...)...),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends one Messages request.
func (c *Client) Complete(ctx context.Context, in core.Completion) (core.Reply, error) {
	system, messages := convertMessages(in.Messages)
	if len(messages) == 0 {
		return core.Reply{}, fmt.Errorf("no valid messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(in.Tools) > 0 {
		tools := convertTools(in.Tools)
		unions := make([]anthropic.ToolUnionParam, len(tools))
		for i := range tools {
			unions[i] = anthropic.ToolUnionParam{OfTool: &tools[i]}
		}
		params.Tools = unions
		if in.ToolChoiceNone {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
		}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return core.Reply{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var reply core.Reply
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			reply.Text += block.Text
		case "tool_use":
			var input map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return core.Reply{}, fmt.Errorf("decode %s tool input: %w", block.Name, err)
				}
			}
			reply.ToolCalls = append(reply.ToolCalls, core.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Query: queryOf(input),
			})
		}
	}
	c.logger.Debug("messages completion",
		zap.String("model", c.model),
		zap.String("stop_reason", string(message.StopReason)),
		zap.Int64("input_tokens", message.Usage.InputTokens),
		zap.Int64("output_tokens", message.Usage.OutputTokens))
	return reply, nil
}

// convertMessages splits out the system prompt and maps the remaining turns.
func convertMessages(in []core.Message) (string, []anthropic.MessageParam) {
	var system []string
	var out []anthropic.MessageParam
	for _, m := range in {
		switch m.Role {
		case core.RoleSystem:
			if m.Content != "" {
				system = append(system, m.Content)
			}
		case core.RoleUser:
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case core.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				content = append(content, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				content = append(content, anthropic.NewToolUseBlock(tc.ID, map[string]any{"query": tc.Query}, tc.Name))
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
		case core.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return strings.Join(system, "\n\n"), out
}

func convertTools(in []core.ToolSpec) []anthropic.ToolParam {
	schemaJSON, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Input for the tool."},
		},
		"required": []string{"query"},
	})
	out := make([]anthropic.ToolParam, 0, len(in))
	for _, t := range in {
		var schema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(schemaJSON, &schema)
		out = append(out, anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		})
	}
	return out
}

func queryOf(input map[string]any) string {
	if q, ok := input["query"].(string); ok {
		return q
	}
	for _, v := range input {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
