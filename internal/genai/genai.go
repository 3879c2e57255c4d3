// Package genai wraps the OpenAI chat completion API for agent responses.
//
// The dispatcher talks to this package through ClientInterface, so tests can
// substitute a canned client without touching the network.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoicesReturned is returned when the model response contains no choices.
var ErrNoChoicesReturned = errors.New("no choices returned from model")

// DefaultModel is used when no model override is configured.
var DefaultModel = openai.ChatModelGPT4oMini

// ToolCall is one structured action request emitted by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries a tool call's name and raw JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallResponse is a model response that may carry both free text and
// structured tool calls.
type ToolCallResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ClientInterface defines the generative model operations the dispatcher uses.
type ClientInterface interface {
	// GenerateWithMessages produces a plain text completion for a prepared
	// message sequence.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	// GenerateWithTools produces a completion where the model may request
	// structured actions from the supplied tool set.
	GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error)
}

// chatService abstracts the OpenAI chat completion call for testing.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the real OpenAI client to chatService.
type openaiChatService struct {
	client openai.Client
}

func (s openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client provides generative AI completions backed by OpenAI.
type Client struct {
	chat    chatService
	model   openai.ChatModel
	timeout time.Duration
}

// Opts holds configuration options for the genai client.
type Opts struct {
	APIKey  string
	Model   openai.ChatModel
	Timeout time.Duration
}

// Option defines a configuration option for the genai client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTimeout bounds each model call. Zero means no client-side bound beyond
// the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// NewClient creates a new OpenAI-backed client with the given options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("GenAI NewClient invoked", "api_key_set", cfg.APIKey != "", "model", cfg.Model)

	if cfg.APIKey == "" {
		slog.Error("GenAI API key not set")
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	oc := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:    openaiChatService{client: oc},
		model:   model,
		timeout: cfg.Timeout,
	}, nil
}

// GenerateWithMessages produces a plain text completion.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.create(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    c.model,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI GenerateWithMessages returned no choices")
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	slog.Debug("GenAI GenerateWithMessages succeeded", "response_length", len(content))
	return content, nil
}

// GenerateWithTools produces a completion where the model may call tools.
func (c *Client) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error) {
	resp, err := c.create(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    c.model,
		Tools:    tools,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI GenerateWithTools returned no choices")
		return nil, ErrNoChoicesReturned
	}

	choice := resp.Choices[0].Message
	result := &ToolCallResponse{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	slog.Debug("GenAI GenerateWithTools succeeded",
		"response_length", len(result.Content), "tool_calls", len(result.ToolCalls))
	return result, nil
}

func (c *Client) create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("GenAI chat completion failed", "error", err)
		return openai.ChatCompletion{}, fmt.Errorf("chat completion failed: %w", err)
	}
	return resp, nil
}
