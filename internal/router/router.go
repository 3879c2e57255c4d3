// Package router owns the queue/agent state machine for leads.
//
// A lead sits in exactly one queue at a time. Three independent sources can
// move it within one conversation turn, resolved in strict precedence order:
// an explicit agent action always wins, then a commerce webhook signal, then
// the keyword heuristic over the inbound text and agent reply. Every accepted
// transition appends one immutable history entry and updates the lead's
// current agent to the profile mapped from the new queue.
package router

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/zapfunnel/zapfunnel/internal/models"
	"github.com/zapfunnel/zapfunnel/internal/store"
)

// Source identifies which signal produced a routing decision.
type Source string

const (
	// SourceAction is an explicit structured action from the agent.
	SourceAction Source = "agent-action"
	// SourceCommerce is a sale status signal from a commerce webhook.
	SourceCommerce Source = "commerce-signal"
	// SourceKeyword is the keyword heuristic over conversation text.
	SourceKeyword Source = "keyword"
)

// Decision is a resolved routing target and the signal that produced it.
type Decision struct {
	Queue  models.QueueType
	Source Source
}

// Router applies queue transitions against the store.
type Router struct {
	store store.Store
}

// New creates a router backed by the given store.
func New(s store.Store) *Router {
	return &Router{store: s}
}

// Decide resolves the target queue for one turn from the available signals,
// in precedence order. ok is false when no signal fires; the lead stays where
// it is.
func Decide(action *models.RequestedAction, sale *models.CommerceFields, inboundText, replyText string) (Decision, bool) {
	if action != nil {
		if queue, ok := action.TargetQueue(); ok {
			return Decision{Queue: queue, Source: SourceAction}, true
		}
	}
	if sale != nil {
		if sale.Status == models.SaleApproved {
			return Decision{Queue: models.QueuePostSales, Source: SourceCommerce}, true
		}
		return Decision{Queue: models.QueueRetention, Source: SourceCommerce}, true
	}
	if queue, ok := DetectQueue(inboundText); ok {
		return Decision{Queue: queue, Source: SourceKeyword}, true
	}
	if queue, ok := DetectQueue(replyText); ok {
		return Decision{Queue: queue, Source: SourceKeyword}, true
	}
	return Decision{}, false
}

// Apply moves a lead to the target queue, appending one history entry and
// remapping the current agent. Moving to the lead's current queue is a no-op
// and appends nothing. The returned bool reports whether a transition
// happened; the lead is mutated in place and persisted.
func (r *Router) Apply(lead *models.Lead, target models.QueueType, now time.Time) (bool, error) {
	if !models.IsValidQueueType(target) {
		return false, fmt.Errorf("%w: %s", models.ErrInvalidQueueType, target)
	}
	if lead.CurrentQueue == target {
		slog.Debug("Router.Apply no-op, lead already in queue", "leadID", lead.ID, "queue", target)
		return false, nil
	}

	entry := models.QueueHistoryEntry{LeadID: lead.ID, QueueType: target, EnteredAt: now}
	if err := r.store.AddQueueHistoryEntry(entry); err != nil {
		return false, fmt.Errorf("failed to append queue history: %w", err)
	}

	from := lead.CurrentQueue
	lead.CurrentQueue = target
	if agent, ok := models.AgentForQueue(target); ok {
		lead.CurrentAgent = agent
	} else {
		lead.CurrentAgent = ""
	}
	if status, ok := statusForQueue(target); ok {
		lead.Status = status
	}
	lead.UpdatedAt = now

	if err := r.store.UpdateLead(*lead); err != nil {
		return false, fmt.Errorf("failed to persist queue transition: %w", err)
	}
	slog.Info("Router.Apply moved lead", "leadID", lead.ID, "from", from, "to", target, "agent", lead.CurrentAgent)
	return true, nil
}

// Route resolves and applies a transition in one call.
func (r *Router) Route(lead *models.Lead, action *models.RequestedAction, sale *models.CommerceFields, inboundText, replyText string, now time.Time) (bool, error) {
	decision, ok := Decide(action, sale, inboundText, replyText)
	if !ok {
		return false, nil
	}
	slog.Debug("Router.Route decided target", "leadID", lead.ID, "queue", decision.Queue, "source", decision.Source)
	return r.Apply(lead, decision.Queue, now)
}

// statusForQueue maps queue transitions to lifecycle label changes. Queues
// without a natural label change keep the lead's current status.
func statusForQueue(q models.QueueType) (models.LeadStatus, bool) {
	switch q {
	case models.QueueCheckout:
		return models.LeadStatusQualified, true
	case models.QueuePostSales:
		return models.LeadStatusCustomer, true
	case models.QueueSupport:
		return models.LeadStatusInSupport, true
	default:
		return "", false
	}
}
