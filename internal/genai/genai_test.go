package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
)

// fakeChatService returns canned completions.
type fakeChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (f *fakeChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	f.params = params
	if f.err != nil {
		return openai.ChatCompletion{}, f.err
	}
	return f.resp, nil
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error when API key is not set")
	}
	if _, err := NewClient(WithAPIKey("test-key")); err != nil {
		t.Errorf("expected client with API key to be created, got %v", err)
	}
}

func TestGenerateWithMessages(t *testing.T) {
	fake := &fakeChatService{
		resp: openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "Olá! Como posso ajudar?"}},
			},
		},
	}
	c := &Client{chat: fake, model: DefaultModel}

	got, err := c.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("system prompt"),
		openai.UserMessage("oi"),
	})
	if err != nil {
		t.Fatalf("GenerateWithMessages failed: %v", err)
	}
	if got != "Olá! Como posso ajudar?" {
		t.Errorf("unexpected response: %q", got)
	}
	if len(fake.params.Messages) != 2 {
		t.Errorf("expected 2 messages sent, got %d", len(fake.params.Messages))
	}
	if fake.params.Model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, fake.params.Model)
	}
}

func TestGenerateWithMessagesNoChoices(t *testing.T) {
	c := &Client{chat: &fakeChatService{}, model: DefaultModel}
	_, err := c.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage("oi"),
	})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestGenerateWithMessagesError(t *testing.T) {
	c := &Client{chat: &fakeChatService{err: errors.New("api unavailable")}, model: DefaultModel}
	_, err := c.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage("oi"),
	})
	if err == nil {
		t.Error("expected wrapped API error")
	}
}

func TestGenerateWithTools(t *testing.T) {
	fake := &fakeChatService{
		resp: openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{
					Content: "Vou te transferir para o suporte.",
					ToolCalls: []openai.ChatCompletionMessageToolCall{
						{
							ID:   "call_1",
							Type: "function",
							Function: openai.ChatCompletionMessageToolCallFunction{
								Name:      "transfer_to_support",
								Arguments: `{"issue":"acesso"}`,
							},
						},
					},
				}},
			},
		},
	}
	c := &Client{chat: fake, model: DefaultModel}

	tools := []openai.ChatCompletionToolParam{
		{Function: openai.FunctionDefinitionParam{Name: "transfer_to_support"}},
	}
	resp, err := c.GenerateWithTools(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage("não consigo acessar"),
	}, tools)
	if err != nil {
		t.Fatalf("GenerateWithTools failed: %v", err)
	}
	if resp.Content != "Vou te transferir para o suporte." {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.Function.Name != "transfer_to_support" {
		t.Errorf("expected transfer_to_support, got %s", tc.Function.Name)
	}
	if tc.Function.Arguments != `{"issue":"acesso"}` {
		t.Errorf("unexpected arguments: %s", tc.Function.Arguments)
	}
	if len(fake.params.Tools) != 1 {
		t.Errorf("expected 1 tool sent, got %d", len(fake.params.Tools))
	}
}

func TestGenerateWithToolsNoChoices(t *testing.T) {
	c := &Client{chat: &fakeChatService{}, model: DefaultModel}
	_, err := c.GenerateWithTools(context.Background(), nil, nil)
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}
