package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/zapfunnel/zapfunnel/internal/actions"
	"github.com/zapfunnel/zapfunnel/internal/agent"
	"github.com/zapfunnel/zapfunnel/internal/flow"
	"github.com/zapfunnel/zapfunnel/internal/genai"
	"github.com/zapfunnel/zapfunnel/internal/models"
	"github.com/zapfunnel/zapfunnel/internal/router"
	"github.com/zapfunnel/zapfunnel/internal/store"
	"github.com/zapfunnel/zapfunnel/internal/whatsapp"
)

type cannedGenAI struct{ reply string }

func (c *cannedGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return c.reply, nil
}

func (c *cannedGenAI) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	return &genai.ToolCallResponse{Content: c.reply}, nil
}

// A message flowing in over the service channel runs a full turn: the lead is
// created and the reply is recorded.
func TestResponseHandlerRunsTurn(t *testing.T) {
	s := store.NewInMemoryStore()
	r := router.New(s)
	service := NewWhatsAppService(whatsapp.NewMockClient())
	d := agent.NewDispatcher(&cannedGenAI{reply: "Olá! Como posso ajudar?"}, s)
	e := actions.NewExecutor(s, r)
	processor := flow.NewProcessor(s, r, d, e, service)

	handler := NewResponseHandler(processor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handler.Run(ctx, service)

	service.messages <- models.ChannelMessage{
		From: "+5511999990060",
		Name: "Rafa",
		Body: "oi, tudo bem?",
		Time: time.Now().Unix(),
	}

	deadline := time.After(2 * time.Second)
	for {
		lead, err := s.GetLeadByPhone("+5511999990060")
		if err != nil {
			t.Fatalf("GetLeadByPhone failed: %v", err)
		}
		if lead != nil {
			msgs, _ := s.GetRecentMessages(lead.ID, 10)
			if len(msgs) == 2 {
				if msgs[1].Content != "Olá! Como posso ajudar?" {
					t.Errorf("unexpected outbound: %q", msgs[1].Content)
				}
				return
			}
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for turn to complete")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestResponseHandlerDropsMalformedMessage(t *testing.T) {
	s := store.NewInMemoryStore()
	r := router.New(s)
	service := NewWhatsAppService(whatsapp.NewMockClient())
	d := agent.NewDispatcher(&cannedGenAI{reply: "olá"}, s)
	processor := flow.NewProcessor(s, r, d, actions.NewExecutor(s, r), service)

	handler := NewResponseHandler(processor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handler.Run(ctx, service)

	service.messages <- models.ChannelMessage{From: "", Body: ""}
	service.messages <- models.ChannelMessage{From: "+5511999990061", Body: "oi", Time: time.Now().Unix()}

	deadline := time.After(2 * time.Second)
	for {
		lead, _ := s.GetLeadByPhone("+5511999990061")
		if lead != nil {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected the valid message to still be processed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
