package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/zapfunnel/zapfunnel/internal/genai"
	"github.com/zapfunnel/zapfunnel/internal/models"
	"github.com/zapfunnel/zapfunnel/internal/store"
)

// mockGenAI returns canned tool call responses and records the request.
type mockGenAI struct {
	resp     *genai.ToolCallResponse
	err      error
	messages []openai.ChatCompletionMessageParamUnion
	tools    []openai.ChatCompletionToolParam
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.messages = messages
	if m.err != nil {
		return "", m.err
	}
	return m.resp.Content, nil
}

func (m *mockGenAI) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	m.messages = messages
	m.tools = tools
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func testLead(agent models.AgentType, queue models.QueueType) *models.Lead {
	return &models.Lead{
		ID:           "lead-1",
		Phone:        "+5511999990020",
		Name:         "Maria",
		Status:       models.LeadStatusNew,
		CurrentQueue: queue,
		CurrentAgent: agent,
	}
}

func TestProfileAllowLists(t *testing.T) {
	pre, ok := ProfileFor(models.AgentPreSales)
	if !ok {
		t.Fatal("expected pre-sales profile")
	}
	if !pre.Allows(models.ActionMoveToQueue) {
		t.Error("pre-sales must be able to move queues")
	}
	if pre.Allows(models.ActionResolveTicket) {
		t.Error("pre-sales must not resolve tickets")
	}
	if pre.Allows(models.ActionSendCampaign) {
		t.Error("pre-sales must not send campaigns")
	}

	post, _ := ProfileFor(models.AgentPostSales)
	if !post.Allows(models.ActionSendCampaign) {
		t.Error("post-sales must be able to send campaigns")
	}

	sup, _ := ProfileFor(models.AgentSupport)
	if !sup.Allows(models.ActionResolveTicket) || !sup.Allows(models.ActionUpdateTicket) {
		t.Error("support must manage tickets")
	}
	if sup.Allows(models.ActionMoveToQueue) {
		t.Error("support must not move queues directly")
	}

	if _, ok := ProfileFor(""); ok {
		t.Error("expected no profile for empty agent")
	}
}

func TestDispatchTextReply(t *testing.T) {
	mock := &mockGenAI{resp: &genai.ToolCallResponse{Content: "O curso custa R$ 297."}}
	d := NewDispatcher(mock, store.NewInMemoryStore())
	lead := testLead(models.AgentPreSales, models.QueuePreSales)

	result, err := d.Dispatch(context.Background(), lead, "quanto custa?")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Reply != "O curso custa R$ 297." {
		t.Errorf("unexpected reply: %q", result.Reply)
	}
	if result.Action != nil {
		t.Errorf("expected no action, got %+v", result.Action)
	}
	if result.Fallback {
		t.Error("expected no fallback")
	}
	// Pre-sales exposes its four allowed tools.
	if len(mock.tools) != 4 {
		t.Errorf("expected 4 tools for pre-sales, got %d", len(mock.tools))
	}
}

func TestDispatchParsesAction(t *testing.T) {
	mock := &mockGenAI{resp: &genai.ToolCallResponse{
		Content: "Vou te passar para o suporte.",
		ToolCalls: []genai.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: genai.FunctionCall{
				Name:      "transfer_to_support",
				Arguments: `{"issue":"erro de acesso"}`,
			},
		}},
	}}
	d := NewDispatcher(mock, store.NewInMemoryStore())
	lead := testLead(models.AgentPreSales, models.QueuePreSales)

	result, err := d.Dispatch(context.Background(), lead, "está dando erro")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Action == nil || result.Action.Type != models.ActionTransferToSupport {
		t.Fatalf("expected transfer_to_support action, got %+v", result.Action)
	}
	if result.Action.TransferToSupport.Issue != "erro de acesso" {
		t.Errorf("unexpected issue: %q", result.Action.TransferToSupport.Issue)
	}
}

func TestDispatchDiscardsDisallowedAction(t *testing.T) {
	// Support may not move queues directly.
	mock := &mockGenAI{resp: &genai.ToolCallResponse{
		Content: "Entendi o problema.",
		ToolCalls: []genai.ToolCall{{
			Function: genai.FunctionCall{
				Name:      "move_to_queue",
				Arguments: `{"queue":"CHECKOUT"}`,
			},
		}},
	}}
	d := NewDispatcher(mock, store.NewInMemoryStore())
	lead := testLead(models.AgentSupport, models.QueueSupport)

	result, err := d.Dispatch(context.Background(), lead, "continua com erro")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Action != nil {
		t.Errorf("expected disallowed action to be discarded, got %+v", result.Action)
	}
	if result.Reply != "Entendi o problema." {
		t.Errorf("expected text reply to survive, got %q", result.Reply)
	}
}

func TestDispatchDiscardsMalformedAction(t *testing.T) {
	mock := &mockGenAI{resp: &genai.ToolCallResponse{
		Content: "Certo!",
		ToolCalls: []genai.ToolCall{{
			Function: genai.FunctionCall{Name: "apply_tag", Arguments: `{"tag":""}`},
		}},
	}}
	d := NewDispatcher(mock, store.NewInMemoryStore())
	lead := testLead(models.AgentPreSales, models.QueuePreSales)

	result, err := d.Dispatch(context.Background(), lead, "oi")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Action != nil {
		t.Errorf("expected malformed action to be discarded, got %+v", result.Action)
	}
}

func TestDispatchFallbackOnModelFailure(t *testing.T) {
	mock := &mockGenAI{err: errors.New("deadline exceeded")}
	d := NewDispatcher(mock, store.NewInMemoryStore())
	lead := testLead(models.AgentPreSales, models.QueuePreSales)

	result, err := d.Dispatch(context.Background(), lead, "oi")
	if err != nil {
		t.Fatalf("expected model failure to be recovered, got %v", err)
	}
	if !result.Fallback || result.Reply != FallbackReply {
		t.Errorf("expected fallback reply, got %+v", result)
	}
}

func TestDispatchNoProfileForHumanQueue(t *testing.T) {
	d := NewDispatcher(&mockGenAI{}, store.NewInMemoryStore())
	lead := testLead("", models.QueueHuman)

	if _, err := d.Dispatch(context.Background(), lead, "oi"); err == nil {
		t.Error("expected error when no profile exists")
	}
}

func TestDispatchIncludesTranscript(t *testing.T) {
	s := store.NewInMemoryStore()
	base := time.Now().Add(-time.Hour)
	msgs := []models.Message{
		{LeadID: "lead-1", Direction: models.DirectionInbound, Content: "oi", SentAt: base},
		{LeadID: "lead-1", Direction: models.DirectionOutbound, Content: "Olá! Como posso ajudar?", SentAt: base.Add(time.Minute)},
	}
	for _, m := range msgs {
		if err := s.AddMessage(m); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	mock := &mockGenAI{resp: &genai.ToolCallResponse{Content: "Claro!"}}
	d := NewDispatcher(mock, s)
	lead := testLead(models.AgentPreSales, models.QueuePreSales)

	if _, err := d.Dispatch(context.Background(), lead, "me fala do curso"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	// system + 2 transcript + new inbound.
	if len(mock.messages) != 4 {
		t.Errorf("expected 4 messages, got %d", len(mock.messages))
	}
}

// Leads repeat themselves; an earlier message with the same text as the
// current one must stay in the transcript.
func TestDispatchKeepsEarlierDuplicateMessage(t *testing.T) {
	s := store.NewInMemoryStore()
	base := time.Now().Add(-time.Hour)
	msgs := []models.Message{
		{LeadID: "lead-1", Direction: models.DirectionInbound, Content: "oi", SentAt: base},
		{LeadID: "lead-1", Direction: models.DirectionOutbound, Content: "Olá! Como posso ajudar?", SentAt: base.Add(time.Minute)},
		{LeadID: "lead-1", Direction: models.DirectionInbound, Content: "oi", SentAt: base.Add(2 * time.Minute)},
	}
	for _, m := range msgs {
		if err := s.AddMessage(m); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	mock := &mockGenAI{resp: &genai.ToolCallResponse{Content: "Oi de novo!"}}
	d := NewDispatcher(mock, s)
	lead := testLead(models.AgentPreSales, models.QueuePreSales)

	if _, err := d.Dispatch(context.Background(), lead, "oi"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	// system + first "oi" + reply + the current "oi"; only the stored copy of
	// the current message is dropped.
	if len(mock.messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(mock.messages))
	}
	if mock.messages[1].OfUser == nil || mock.messages[1].OfUser.Content.OfString.Value != "oi" {
		t.Errorf("expected earlier duplicate inbound to survive, got %+v", mock.messages[1])
	}
}

func TestDispatchSupportKnowledgeContext(t *testing.T) {
	s := store.NewInMemoryStore()
	if err := s.AddKnowledgeEntry(models.KnowledgeEntry{
		Title:   "erro de acesso",
		Content: "Confira se o email de login é o mesmo da compra.",
	}); err != nil {
		t.Fatalf("AddKnowledgeEntry failed: %v", err)
	}

	mock := &mockGenAI{resp: &genai.ToolCallResponse{Content: "Confere o email de login."}}
	d := NewDispatcher(mock, s)
	lead := testLead(models.AgentSupport, models.QueueSupport)

	if _, err := d.Dispatch(context.Background(), lead, "estou com erro de acesso"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	system := mock.messages[0].OfSystem.Content.OfString.Value
	if !strings.Contains(system, "erro de acesso") {
		t.Errorf("expected knowledge article in system context, got %q", system)
	}

	// No matching article: the sentinel must appear instead.
	mock2 := &mockGenAI{resp: &genai.ToolCallResponse{Content: "Me conta mais."}}
	d2 := NewDispatcher(mock2, s)
	if _, err := d2.Dispatch(context.Background(), lead, "assunto totalmente diferente"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	system = mock2.messages[0].OfSystem.Content.OfString.Value
	if !strings.Contains(system, noKnowledgeFound) {
		t.Errorf("expected empty-lookup sentinel in system context, got %q", system)
	}
}
