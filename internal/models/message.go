// Package models defines message and tag structures for ZapFunnel conversations.
package models

import (
	"errors"
	"time"
)

// MessageDirection indicates whether a message was received or sent.
type MessageDirection string

const (
	// DirectionInbound marks a message received from the lead.
	DirectionInbound MessageDirection = "INBOUND"
	// DirectionOutbound marks a message sent to the lead.
	DirectionOutbound MessageDirection = "OUTBOUND"
)

// Error variables for message validation.
var (
	ErrEmptyMessageContent  = errors.New("message content cannot be empty")
	ErrInvalidDirection     = errors.New("invalid message direction")
	ErrMissingMessageLeadID = errors.New("message lead_id is required")
)

// Message is one conversation message for a lead. An OUTBOUND message
// answering an INBOUND one never has SentAt before that INBOUND's SentAt.
type Message struct {
	ID          string           `json:"id"`
	LeadID      string           `json:"lead_id"`
	Direction   MessageDirection `json:"direction"`
	Content     string           `json:"content"`
	SentAt      time.Time        `json:"sent_at"`
	AIGenerated bool             `json:"ai_generated,omitempty"`
	AgentType   AgentType        `json:"agent_type,omitempty"` // agent profile that produced an outbound message
}

// Validate checks required message fields.
func (m *Message) Validate() error {
	if m.LeadID == "" {
		return ErrMissingMessageLeadID
	}
	if m.Direction != DirectionInbound && m.Direction != DirectionOutbound {
		return ErrInvalidDirection
	}
	if m.Content == "" {
		return ErrEmptyMessageContent
	}
	return nil
}

// Tag is a label that can be applied to leads. Names are unique.
type Tag struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Color    string `json:"color,omitempty"`
}

// LeadTag is the many-to-many association between leads and tags.
// Applying the same tag to the same lead twice is a no-op.
type LeadTag struct {
	LeadID    string    `json:"lead_id"`
	TagID     string    `json:"tag_id"`
	AppliedAt time.Time `json:"applied_at"`
}

// KnowledgeEntry is one article in the support knowledge base.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
