// Package flow runs the conversation turn pipeline: resolve the lead, load
// context, route queues, dispatch the agent and apply its actions.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zapfunnel/zapfunnel/internal/actions"
	"github.com/zapfunnel/zapfunnel/internal/agent"
	"github.com/zapfunnel/zapfunnel/internal/models"
	"github.com/zapfunnel/zapfunnel/internal/router"
	"github.com/zapfunnel/zapfunnel/internal/store"
)

// Sender delivers outbound messages to the lead's channel.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Processor executes one turn per inbound event. Turns for the same identity
// are serialized; the store's uniqueness constraint is the second line of
// defense against duplicate leads.
type Processor struct {
	store      store.Store
	router     *router.Router
	dispatcher *agent.Dispatcher
	executor   *actions.Executor
	sender     Sender
	locks      *identityLocks
}

// NewProcessor wires the turn pipeline.
func NewProcessor(s store.Store, r *router.Router, d *agent.Dispatcher, e *actions.Executor, sender Sender) *Processor {
	return &Processor{
		store:      s,
		router:     r,
		dispatcher: d,
		executor:   e,
		sender:     sender,
		locks:      newIdentityLocks(),
	}
}

// HandleEvent processes one normalized inbound event end to end.
func (p *Processor) HandleEvent(ctx context.Context, event *models.InboundEvent) error {
	if event.Identity.IsEmpty() {
		return fmt.Errorf("%w: event without identity", models.ErrMalformedEvent)
	}

	key := event.Identity.Phone
	if key == "" {
		key = event.Identity.Email
	}
	mu := p.locks.get(key)
	mu.Lock()
	defer mu.Unlock()

	lead, err := p.resolve(event.Identity)
	if err != nil {
		return err
	}

	switch event.Kind {
	case models.EventLeadCapture:
		return p.handleLeadCapture(lead, event)
	case models.EventCommerceSale:
		return p.handleCommerceSale(lead, event)
	case models.EventChatMessage:
		return p.handleChatMessage(ctx, lead, event)
	default:
		return fmt.Errorf("%w: unknown event kind %q", models.ErrMalformedEvent, event.Kind)
	}
}

// resolve finds or creates the lead for an identity. New leads start in
// PRE_SALES with the pre-sales agent and get their first history entry.
func (p *Processor) resolve(identity models.Identity) (*models.Lead, error) {
	now := time.Now()
	lead, created, err := p.store.FindOrCreateLead(models.Lead{
		Phone:        identity.Phone,
		Email:        identity.Email,
		ExternalID:   identity.ExternalID,
		Name:         identity.Name,
		Status:       models.LeadStatusNew,
		CurrentQueue: models.QueuePreSales,
		CurrentAgent: models.AgentPreSales,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve lead: %w", err)
	}
	if created {
		entry := models.QueueHistoryEntry{LeadID: lead.ID, QueueType: models.QueuePreSales, EnteredAt: now}
		if err := p.store.AddQueueHistoryEntry(entry); err != nil {
			return nil, fmt.Errorf("failed to record first queue entry: %w", err)
		}
		slog.Info("Processor created lead", "leadID", lead.ID, "phone", lead.Phone)
	}
	return lead, nil
}

// handleLeadCapture refreshes contact fields and tags the lead with its
// campaign origin. Ad-form submissions never trigger a router turn.
func (p *Processor) handleLeadCapture(lead *models.Lead, event *models.InboundEvent) error {
	p.refreshContact(lead, event.Identity)
	lead.UpdatedAt = time.Now()
	if err := p.store.UpdateLead(*lead); err != nil {
		return fmt.Errorf("failed to update captured lead: %w", err)
	}

	if event.Campaign != "" {
		tag, err := p.store.GetOrCreateTag("origem-" + event.Campaign)
		if err != nil {
			return fmt.Errorf("failed to resolve campaign tag: %w", err)
		}
		if err := p.store.ApplyTag(lead.ID, tag.ID); err != nil {
			return fmt.Errorf("failed to tag campaign origin: %w", err)
		}
	}
	slog.Info("Processor captured lead", "leadID", lead.ID, "campaign", event.Campaign)
	return nil
}

// handleCommerceSale refreshes buyer contact fields and routes by sale
// status: approved purchases force POST_SALES, everything else lands in
// RETENTION. No reply is sent for commerce events.
func (p *Processor) handleCommerceSale(lead *models.Lead, event *models.InboundEvent) error {
	p.refreshContact(lead, event.Identity)
	now := time.Now()
	lead.LastInteractionAt = now
	lead.UpdatedAt = now
	if err := p.store.UpdateLead(*lead); err != nil {
		return fmt.Errorf("failed to refresh buyer fields: %w", err)
	}

	moved, err := p.router.Route(lead, nil, event.Commerce, "", "", now)
	if err != nil {
		return err
	}
	slog.Info("Processor handled commerce event", "leadID", lead.ID,
		"status", event.Commerce.Status, "moved", moved, "queue", lead.CurrentQueue)
	return nil
}

// handleChatMessage runs the full agent turn: record the inbound message,
// dispatch the current profile, execute the requested action, fall back to
// keyword routing when nothing moved the queue, then reply.
func (p *Processor) handleChatMessage(ctx context.Context, lead *models.Lead, event *models.InboundEvent) error {
	// Arrival time, not the provider timestamp: provider clocks carry whole
	// seconds only, and sub-second resolution is what keeps rapid turns in
	// order in the transcript.
	now := time.Now()

	inbound := models.Message{
		LeadID:    lead.ID,
		Direction: models.DirectionInbound,
		Content:   event.Text,
		SentAt:    now,
	}
	if err := p.store.AddMessage(inbound); err != nil {
		return fmt.Errorf("failed to record inbound message: %w", err)
	}

	p.refreshContact(lead, event.Identity)
	if lead.FirstMessageAt.IsZero() {
		lead.FirstMessageAt = now
	}
	lead.LastInteractionAt = now
	lead.UpdatedAt = now
	if err := p.store.UpdateLead(*lead); err != nil {
		return fmt.Errorf("failed to update lead timestamps: %w", err)
	}

	if lead.CurrentQueue == models.QueueHuman || lead.CurrentAgent == "" {
		slog.Info("Processor skipping automated reply, human owns the conversation", "leadID", lead.ID)
		return nil
	}

	respondingAgent := lead.CurrentAgent
	result, err := p.dispatcher.Dispatch(ctx, lead, event.Text)
	if err != nil {
		return fmt.Errorf("agent dispatch failed: %w", err)
	}

	queueBefore := lead.CurrentQueue
	var campaignText string
	if result.Action != nil {
		campaignText, err = p.executor.Execute(lead, result.Action, now)
		if err != nil {
			// Known partial-failure gap: side effects already applied stay.
			slog.Error("Processor action execution failed, turn aborted",
				"error", err, "leadID", lead.ID, "action", result.Action.Type)
			return err
		}
	}

	// Keyword heuristic only when neither the action nor a commerce signal
	// moved the queue this turn. On fallback turns the inbound text still
	// routes, but the canned apology is kept out of the scan so its own
	// wording never triggers a transfer.
	if lead.CurrentQueue == queueBefore {
		replyText := result.Reply
		if result.Fallback {
			replyText = ""
		}
		if _, err := p.router.Route(lead, nil, nil, event.Text, replyText, now); err != nil {
			return err
		}
	}

	if result.Reply != "" {
		if err := p.deliver(ctx, lead, result.Reply, respondingAgent, true); err != nil {
			return err
		}
	}
	if campaignText != "" {
		if err := p.deliver(ctx, lead, campaignText, respondingAgent, true); err != nil {
			return err
		}
	}
	return nil
}

// deliver sends one outbound message and records it. A send failure is logged
// and the message is not recorded; the provider is never shown an error.
func (p *Processor) deliver(ctx context.Context, lead *models.Lead, body string, agentType models.AgentType, aiGenerated bool) error {
	if err := p.sender.SendMessage(ctx, lead.Phone, body); err != nil {
		slog.Error("Processor outbound send failed", "error", err, "leadID", lead.ID)
		return nil
	}
	outbound := models.Message{
		LeadID:      lead.ID,
		Direction:   models.DirectionOutbound,
		Content:     body,
		SentAt:      time.Now(),
		AIGenerated: aiGenerated,
		AgentType:   agentType,
	}
	if err := p.store.AddMessage(outbound); err != nil {
		return fmt.Errorf("failed to record outbound message: %w", err)
	}
	return nil
}

// refreshContact fills lead contact fields from a fresher identity without
// overwriting known values with blanks.
func (p *Processor) refreshContact(lead *models.Lead, identity models.Identity) {
	if identity.Email != "" {
		lead.Email = identity.Email
	}
	if identity.Name != "" {
		lead.Name = identity.Name
	}
	if identity.ExternalID != "" {
		lead.ExternalID = identity.ExternalID
	}
}
