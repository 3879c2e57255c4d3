// Package models defines the core data structures for ZapFunnel.
//
// It includes the lead/conversation types shared across modules: leads,
// messages, tags, tickets, queue routing enums and agent action requests.
package models

import (
	"errors"
	"time"
)

// QueueType identifies the routing bucket that currently owns a lead.
type QueueType string

const (
	// QueuePreSales holds leads that have not purchased yet.
	QueuePreSales QueueType = "PRE_SALES"
	// QueueCheckout holds leads showing buying intent.
	QueueCheckout QueueType = "CHECKOUT"
	// QueuePostSales holds leads with an approved purchase.
	QueuePostSales QueueType = "POST_SALES"
	// QueueSupport holds leads with an open support issue.
	QueueSupport QueueType = "SUPPORT"
	// QueueRetention holds leads with a refunded or cancelled purchase.
	QueueRetention QueueType = "RETENTION"
	// QueueHuman disables automation; a human operator owns the conversation.
	QueueHuman QueueType = "HUMAN"
)

// AgentType identifies an automated behavior profile bound to a queue.
type AgentType string

const (
	// AgentPreSales answers product and pricing questions.
	AgentPreSales AgentType = "PRE_SALES"
	// AgentPostSales handles onboarding and follow-up after purchase.
	AgentPostSales AgentType = "POST_SALES"
	// AgentSupport handles technical issues backed by the knowledge base.
	AgentSupport AgentType = "SUPPORT"
)

// LeadStatus is the coarse lifecycle label of a lead.
type LeadStatus string

const (
	// LeadStatusNew marks a freshly created lead.
	LeadStatusNew LeadStatus = "new-lead"
	// LeadStatusQualified marks a lead that showed buying intent.
	LeadStatusQualified LeadStatus = "qualified"
	// LeadStatusCustomer marks a lead with an approved purchase.
	LeadStatusCustomer LeadStatus = "active-customer"
	// LeadStatusInSupport marks a lead with an open support ticket.
	LeadStatusInSupport LeadStatus = "in-support"
)

// Error variables for lead validation and lookup.
var (
	ErrEmptyIdentity    = errors.New("lead identity cannot be empty")
	ErrInvalidQueueType = errors.New("invalid queue type")
	ErrInvalidAgentType = errors.New("invalid agent type")
	ErrLeadNotFound     = errors.New("lead not found")
)

// IsValidQueueType checks if the given queue type is one of the six routing buckets.
func IsValidQueueType(q QueueType) bool {
	switch q {
	case QueuePreSales, QueueCheckout, QueuePostSales, QueueSupport, QueueRetention, QueueHuman:
		return true
	default:
		return false
	}
}

// IsValidAgentType checks if the given agent type has a behavior profile.
func IsValidAgentType(a AgentType) bool {
	switch a {
	case AgentPreSales, AgentPostSales, AgentSupport:
		return true
	default:
		return false
	}
}

// AgentForQueue maps a queue to the agent type that serves it.
// CHECKOUT reuses the pre-sales profile and RETENTION reuses the post-sales
// profile; HUMAN has no automated agent and returns ok=false.
func AgentForQueue(q QueueType) (AgentType, bool) {
	switch q {
	case QueuePreSales, QueueCheckout:
		return AgentPreSales, true
	case QueuePostSales, QueueRetention:
		return AgentPostSales, true
	case QueueSupport:
		return AgentSupport, true
	default:
		return "", false
	}
}

// Lead is the canonical record of one external contact and their conversation state.
// A lead has exactly one CurrentQueue and at most one CurrentAgent at any instant.
type Lead struct {
	ID                string     `json:"id"`
	Phone             string     `json:"phone"`
	Email             string     `json:"email,omitempty"`
	ExternalID        string     `json:"external_id,omitempty"` // messaging provider identity
	Name              string     `json:"name,omitempty"`
	Status            LeadStatus `json:"status"`
	CurrentQueue      QueueType  `json:"current_queue"`
	CurrentAgent      AgentType  `json:"current_agent,omitempty"` // empty when no automated agent owns the lead
	FirstMessageAt    time.Time  `json:"first_message_at,omitempty"`
	LastInteractionAt time.Time  `json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Validate checks lead invariants: a non-empty identity, a valid queue and a
// current agent consistent with the queue mapping.
func (l *Lead) Validate() error {
	if l.Phone == "" && l.Email == "" && l.ExternalID == "" {
		return ErrEmptyIdentity
	}
	if !IsValidQueueType(l.CurrentQueue) {
		return ErrInvalidQueueType
	}
	if l.CurrentAgent != "" && !IsValidAgentType(l.CurrentAgent) {
		return ErrInvalidAgentType
	}
	return nil
}

// QueueHistoryEntry is an immutable audit record of one queue transition.
// The history for a lead is append-only and never mutated or reordered.
type QueueHistoryEntry struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	QueueType QueueType `json:"queue_type"`
	EnteredAt time.Time `json:"entered_at"`
}
