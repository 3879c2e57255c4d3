// Package actions applies structured agent action requests to the lead state.
//
// Execution is not transactional: a storage failure mid-action aborts the
// turn and is logged, already-applied side effects stay. Tag application is
// idempotent, so a retried turn never duplicates tags.
package actions

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/zapfunnel/zapfunnel/internal/models"
	"github.com/zapfunnel/zapfunnel/internal/router"
	"github.com/zapfunnel/zapfunnel/internal/store"
)

// campaignTemplates maps campaign types to their outbound message. Unknown
// types fall back to the generic follow-up.
var campaignTemplates = map[string]string{
	"onboarding": "Oi! Passando para te ajudar nos primeiros passos. Já conseguiu acessar o conteúdo?",
	"upsell":     "Tenho uma condição especial para você dar o próximo passo. Quer saber mais?",
	"follow-up":  "Oi! Passando para saber se ficou alguma dúvida. Posso ajudar em algo?",
}

const genericCampaign = "Oi! Temos uma novidade para você. Quer saber mais?"

// Executor validates and applies requested actions against the store and the
// queue router.
type Executor struct {
	store  store.Store
	router *router.Router
}

// NewExecutor creates an executor backed by the given store and router.
func NewExecutor(s store.Store, r *router.Router) *Executor {
	return &Executor{store: s, router: r}
}

// Execute applies one action's side effects. The returned string, when
// non-empty, is an additional outbound message the caller should deliver
// (campaign sends). The lead is mutated in place for queue transitions.
func (e *Executor) Execute(lead *models.Lead, action *models.RequestedAction, now time.Time) (string, error) {
	slog.Debug("Executor.Execute applying action", "leadID", lead.ID, "action", action.Type)

	switch action.Type {
	case models.ActionApplyTag:
		return "", e.applyTag(lead, action.ApplyTag.Tag)
	case models.ActionMoveToQueue:
		_, err := e.router.Apply(lead, action.MoveToQueue.Queue, now)
		return "", err
	case models.ActionTransferToSupport:
		return "", e.transferToSupport(lead, action.TransferToSupport.Issue, now)
	case models.ActionEscalateToHuman:
		return "", e.escalateToHuman(lead, action.EscalateToHuman.Reason, now)
	case models.ActionResolveTicket:
		return "", e.resolveTicket(lead, action.ResolveTicket.Solution, now)
	case models.ActionUpdateTicket:
		return "", e.updateTicket(lead, action.UpdateTicket.Status, now)
	case models.ActionSendCampaign:
		return e.sendCampaign(lead, action.SendCampaign.CampaignType)
	default:
		return "", fmt.Errorf("%w: %s", models.ErrUnknownAction, action.Type)
	}
}

func (e *Executor) applyTag(lead *models.Lead, name string) error {
	tag, err := e.store.GetOrCreateTag(name)
	if err != nil {
		return fmt.Errorf("failed to resolve tag %q: %w", name, err)
	}
	if err := e.store.ApplyTag(lead.ID, tag.ID); err != nil {
		return fmt.Errorf("failed to apply tag %q: %w", name, err)
	}
	slog.Info("Executor applied tag", "leadID", lead.ID, "tag", name)
	return nil
}

// transferToSupport moves the lead to SUPPORT and opens a ticket, unless one
// is already open. A second transfer while a ticket is open reuses it.
func (e *Executor) transferToSupport(lead *models.Lead, issue string, now time.Time) error {
	if _, err := e.router.Apply(lead, models.QueueSupport, now); err != nil {
		return err
	}

	open, err := e.store.GetOpenTicket(lead.ID)
	if err != nil {
		return fmt.Errorf("failed to check open tickets: %w", err)
	}
	if open != nil {
		slog.Info("Executor reusing open ticket on support transfer", "leadID", lead.ID, "ticketID", open.ID)
		return nil
	}

	ticket := models.Ticket{
		LeadID:      lead.ID,
		Description: issue,
		Status:      models.TicketStatusOpen,
		Priority:    models.TicketPriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateTicket(ticket); err != nil {
		return fmt.Errorf("failed to create support ticket: %w", err)
	}
	slog.Info("Executor opened support ticket", "leadID", lead.ID, "issue", issue)
	return nil
}

// escalateToHuman hands the lead to a human operator and makes sure a
// high-priority ticket tracks the escalation. An already open ticket is
// bumped to HIGH instead of opening a second one.
func (e *Executor) escalateToHuman(lead *models.Lead, reason string, now time.Time) error {
	if _, err := e.router.Apply(lead, models.QueueHuman, now); err != nil {
		return err
	}

	open, err := e.store.GetOpenTicket(lead.ID)
	if err != nil {
		return fmt.Errorf("failed to check open tickets: %w", err)
	}
	if open != nil {
		open.Priority = models.TicketPriorityHigh
		open.UpdatedAt = now
		if err := e.store.UpdateTicket(*open); err != nil {
			return fmt.Errorf("failed to raise ticket priority: %w", err)
		}
		slog.Info("Executor escalated lead with existing ticket", "leadID", lead.ID, "ticketID", open.ID, "reason", reason)
		return nil
	}

	ticket := models.Ticket{
		LeadID:      lead.ID,
		Description: reason,
		Status:      models.TicketStatusOpen,
		Priority:    models.TicketPriorityHigh,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateTicket(ticket); err != nil {
		return fmt.Errorf("failed to create escalation ticket: %w", err)
	}
	slog.Info("Executor escalated lead to human operator", "leadID", lead.ID, "reason", reason)
	return nil
}

// resolveTicket closes the open ticket and returns the lead to POST_SALES.
// Without an open ticket only the queue transition happens.
func (e *Executor) resolveTicket(lead *models.Lead, solution string, now time.Time) error {
	open, err := e.store.GetOpenTicket(lead.ID)
	if err != nil {
		return fmt.Errorf("failed to load open ticket: %w", err)
	}
	if open == nil {
		slog.Warn("Executor resolve_ticket with no open ticket", "leadID", lead.ID)
	} else {
		open.Status = models.TicketStatusResolved
		open.Description = open.Description + "\nSolução: " + solution
		open.ResolvedAt = &now
		open.UpdatedAt = now
		if err := e.store.UpdateTicket(*open); err != nil {
			return fmt.Errorf("failed to resolve ticket %s: %w", open.ID, err)
		}
		slog.Info("Executor resolved ticket", "leadID", lead.ID, "ticketID", open.ID)
	}

	_, err = e.router.Apply(lead, models.QueuePostSales, now)
	return err
}

func (e *Executor) updateTicket(lead *models.Lead, status models.TicketStatus, now time.Time) error {
	open, err := e.store.GetOpenTicket(lead.ID)
	if err != nil {
		return fmt.Errorf("failed to load open ticket: %w", err)
	}
	if open == nil {
		slog.Warn("Executor update_ticket with no open ticket", "leadID", lead.ID, "status", status)
		return nil
	}

	open.Status = status
	open.UpdatedAt = now
	if status == models.TicketStatusResolved {
		open.ResolvedAt = &now
	}
	if err := e.store.UpdateTicket(*open); err != nil {
		return fmt.Errorf("failed to update ticket %s: %w", open.ID, err)
	}
	slog.Info("Executor updated ticket", "leadID", lead.ID, "ticketID", open.ID, "status", status)

	if status == models.TicketStatusResolved {
		_, err = e.router.Apply(lead, models.QueuePostSales, now)
		return err
	}
	return nil
}

// sendCampaign tags the lead with the campaign and returns the campaign text
// for delivery.
func (e *Executor) sendCampaign(lead *models.Lead, campaignType string) (string, error) {
	if err := e.applyTag(lead, "campanha-"+campaignType); err != nil {
		return "", err
	}
	text, ok := campaignTemplates[campaignType]
	if !ok {
		text = genericCampaign
	}
	slog.Info("Executor queued campaign message", "leadID", lead.ID, "campaign", campaignType)
	return text, nil
}
