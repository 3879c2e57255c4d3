// Package models defines ticket structures for support escalations.
package models

import (
	"errors"
	"time"
)

// TicketStatus enumerates the lifecycle states of a support ticket.
type TicketStatus string

const (
	// TicketStatusOpen marks a freshly created ticket.
	TicketStatusOpen TicketStatus = "OPEN"
	// TicketStatusInProgress marks a ticket being worked on.
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	// TicketStatusWaiting marks a ticket waiting on the customer.
	TicketStatusWaiting TicketStatus = "WAITING"
	// TicketStatusResolved marks a solved ticket.
	TicketStatusResolved TicketStatus = "RESOLVED"
)

// TicketPriority enumerates ticket urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// Error variables for ticket validation and lookup.
var (
	ErrInvalidTicketStatus = errors.New("invalid ticket status")
	ErrMissingTicketLeadID = errors.New("ticket lead_id is required")
	ErrTicketNotFound      = errors.New("ticket not found")
)

// IsValidTicketStatus checks if the given ticket status is supported.
func IsValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaiting, TicketStatusResolved:
		return true
	default:
		return false
	}
}

// Ticket is a support request created when an agent escalates or transfers a
// lead. Resolving a ticket moves the lead back to POST_SALES.
type Ticket struct {
	ID          string         `json:"id"`
	LeadID      string         `json:"lead_id"`
	Description string         `json:"description"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	Category    string         `json:"category,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}

// Validate checks required ticket fields.
func (t *Ticket) Validate() error {
	if t.LeadID == "" {
		return ErrMissingTicketLeadID
	}
	if !IsValidTicketStatus(t.Status) {
		return ErrInvalidTicketStatus
	}
	return nil
}
