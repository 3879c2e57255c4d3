package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/zapfunnel/zapfunnel/internal/genai"
	"github.com/zapfunnel/zapfunnel/internal/models"
	"github.com/zapfunnel/zapfunnel/internal/store"
)

// FallbackReply is sent when the model call fails. The lead never sees an
// internal error.
const FallbackReply = "Desculpe, tive um problema técnico agora. Já te respondo, tá bom?"

// noKnowledgeFound marks an empty knowledge base lookup in the support
// context so the model does not hallucinate articles.
const noKnowledgeFound = "Nenhum artigo relevante encontrado na base de conhecimento."

const (
	defaultHistoryLimit   = 20
	defaultKnowledgeLimit = 3
)

// TurnResult is the outcome of one dispatched conversation turn.
type TurnResult struct {
	Reply    string
	Action   *models.RequestedAction // nil when the model requested none
	Fallback bool                    // true when Reply is the fixed fallback
}

// Dispatcher assembles the conversation context for the current agent
// profile, invokes the model and parses its structured action requests.
type Dispatcher struct {
	genai          genai.ClientInterface
	store          store.Store
	historyLimit   int
	knowledgeLimit int
}

// Opts holds configuration options for the dispatcher.
type Opts struct {
	HistoryLimit   int
	KnowledgeLimit int
}

// Option defines a configuration option for the dispatcher.
type Option func(*Opts)

// WithHistoryLimit sets how many past messages are loaded into the transcript.
func WithHistoryLimit(n int) Option {
	return func(o *Opts) {
		o.HistoryLimit = n
	}
}

// WithKnowledgeLimit caps how many knowledge base articles enter the support
// context.
func WithKnowledgeLimit(n int) Option {
	return func(o *Opts) {
		o.KnowledgeLimit = n
	}
}

// NewDispatcher creates a dispatcher backed by the given model client and store.
func NewDispatcher(client genai.ClientInterface, s store.Store, opts ...Option) *Dispatcher {
	cfg := Opts{HistoryLimit: defaultHistoryLimit, KnowledgeLimit: defaultKnowledgeLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dispatcher{
		genai:          client,
		store:          s,
		historyLimit:   cfg.HistoryLimit,
		knowledgeLimit: cfg.KnowledgeLimit,
	}
}

// Dispatch runs one conversation turn for the lead's current agent. A model
// failure is recovered locally with the fixed fallback reply; an action the
// profile does not allow is logged and discarded while the text reply
// survives.
func (d *Dispatcher) Dispatch(ctx context.Context, lead *models.Lead, inboundText string) (*TurnResult, error) {
	profile, ok := ProfileFor(lead.CurrentAgent)
	if !ok {
		return nil, fmt.Errorf("no behavior profile for agent %q", lead.CurrentAgent)
	}

	messages, err := d.buildMessages(profile, lead, inboundText)
	if err != nil {
		return nil, err
	}

	resp, err := d.genai.GenerateWithTools(ctx, messages, toolsForProfile(profile))
	if err != nil {
		slog.Error("Dispatcher.Dispatch model call failed, using fallback reply",
			"error", err, "leadID", lead.ID, "agent", profile.Agent)
		return &TurnResult{Reply: FallbackReply, Fallback: true}, nil
	}

	result := &TurnResult{Reply: resp.Content}
	if action := d.parseAction(profile, lead.ID, resp.ToolCalls); action != nil {
		result.Action = action
	}
	slog.Debug("Dispatcher.Dispatch turn completed", "leadID", lead.ID,
		"agent", profile.Agent, "has_action", result.Action != nil)
	return result, nil
}

// buildMessages assembles system prompt, lead context, support knowledge,
// transcript and the new inbound text, in that order.
func (d *Dispatcher) buildMessages(profile Profile, lead *models.Lead, inboundText string) ([]openai.ChatCompletionMessageParamUnion, error) {
	system := profile.SystemPrompt + "\n\n" + leadContext(lead)

	if profile.Agent == models.AgentSupport {
		knowledge, err := d.store.SearchKnowledge(inboundText, d.knowledgeLimit)
		if err != nil {
			return nil, fmt.Errorf("knowledge base lookup failed: %w", err)
		}
		system += "\n\n" + knowledgeContext(knowledge)
	}

	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system)}

	transcript, err := d.store.GetRecentMessages(lead.ID, d.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	// The turn's own inbound message is already recorded and sorts last;
	// drop only that one so earlier identical messages stay in the history.
	if n := len(transcript); n > 0 {
		last := transcript[n-1]
		if last.Direction == models.DirectionInbound && last.Content == inboundText {
			transcript = transcript[:n-1]
		}
	}
	for _, msg := range transcript {
		if msg.Direction == models.DirectionInbound {
			messages = append(messages, openai.UserMessage(msg.Content))
		} else {
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	messages = append(messages, openai.UserMessage(inboundText))
	return messages, nil
}

// parseAction extracts the first valid, allowed action from the model's tool
// calls. Everything else is logged and dropped.
func (d *Dispatcher) parseAction(profile Profile, leadID string, calls []genai.ToolCall) *models.RequestedAction {
	for _, call := range calls {
		action, err := models.ParseRequestedAction(call.Function.Name, json.RawMessage(call.Function.Arguments))
		if err != nil {
			slog.Warn("Dispatcher discarding unparseable action", "error", err,
				"leadID", leadID, "action", call.Function.Name)
			continue
		}
		if !profile.Allows(action.Type) {
			slog.Warn("Dispatcher discarding action outside profile allow-list",
				"leadID", leadID, "agent", profile.Agent, "action", action.Type)
			continue
		}
		return action
	}
	return nil
}

func leadContext(lead *models.Lead) string {
	var b strings.Builder
	b.WriteString("Contexto do lead:\n")
	if lead.Name != "" {
		fmt.Fprintf(&b, "- Nome: %s\n", lead.Name)
	}
	fmt.Fprintf(&b, "- Status: %s\n", lead.Status)
	fmt.Fprintf(&b, "- Fila atual: %s\n", lead.CurrentQueue)
	return strings.TrimRight(b.String(), "\n")
}

func knowledgeContext(entries []models.KnowledgeEntry) string {
	if len(entries) == 0 {
		return "Base de conhecimento:\n" + noKnowledgeFound
	}
	var b strings.Builder
	b.WriteString("Base de conhecimento:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "## %s\n%s\n", e.Title, e.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
