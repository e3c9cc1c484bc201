package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/N9work/CrewAi-Project/internal/agent/core"
)

const defaultBaseURL = "https://api.openai.com/v1"

// APIError is a non-200 answer from the chat completions endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to any OpenAI-compatible chat completions API
// (OpenAI, Groq, OpenRouter).
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *zap.Logger
}

// message represents a message in a conversation
type message struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// request represents a request to the chat completions API
type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Tools       []toolDef `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
}

// response represents a response from the chat completions API
type response struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
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

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// NewOpenAIClient creates a new chat completions client. An empty baseURL
// selects api.openai.com.
func NewOpenAIClient(apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends one chat completion and maps tool calls back to the
// single-query form every tool takes.
func (c *Client) Complete(ctx context.Context, in core.Completion) (core.Reply, error) {
	if c.apiKey == "" {
		return core.Reply{}, fmt.Errorf("llm api key not configured")
	}
	body := request{
		Model:       c.model,
		Messages:    toMessages(in.Messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	for _, t := range in.Tools {
		body.Tools = append(body.Tools, toolDef{
			Type: "function",
			Function: functionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{"type": "string", "description": "Input for the tool."},
					},
					"required": []string{"query"},
				},
			},
		})
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
		if in.ToolChoiceNone {
			body.ToolChoice = "none"
		}
	}

	out, err := c.sendRequest(ctx, body)
	if err != nil {
		return core.Reply{}, err
	}
	if len(out.Choices) == 0 {
		return core.Reply{}, fmt.Errorf("no choices in response")
	}
	msg := out.Choices[0].Message
	reply := core.Reply{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, core.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Query: queryArgument(tc.Function.Arguments),
		})
	}
	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
		zap.Int("tool_calls", len(reply.ToolCalls)))
	return reply, nil
}

// sendRequest posts to {baseURL}/chat/completions
func (c *Client) sendRequest(ctx context.Context, body request) (response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return response{}, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return response{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return out, nil
}

func toMessages(in []core.Message) []message {
	out := make([]message, 0, len(in))
	for _, m := range in {
		content := m.Content
		msg := message{Role: string(m.Role), Content: &content, ToolCallID: m.ToolCallID}
		if m.Role == core.RoleTool {
			msg.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(map[string]string{"query": tc.Query})
			var call toolCall
			call.ID = tc.ID
			call.Type = "function"
			call.Function.Name = tc.Name
			call.Function.Arguments = string(args)
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
		if m.Role == core.RoleAssistant && len(m.ToolCalls) > 0 && m.Content == "" {
			msg.Content = nil
		}
		out = append(out, msg)
	}
	return out
}

// queryArgument extracts the query from function-call arguments. Models
// occasionally send a bare string instead of an object.
func queryArgument(raw string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		if q, ok := args["query"].(string); ok {
			return q
		}
		for _, v := range args {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return strings.TrimSpace(raw)
}
