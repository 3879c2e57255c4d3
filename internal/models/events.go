// Package models defines the canonical inbound event types produced by the
// channel event normalizer.
package models

import "errors"

// ProviderKind identifies the webhook source of a raw payload.
type ProviderKind string

const (
	// ProviderChatMessage is the WhatsApp chat webhook.
	ProviderChatMessage ProviderKind = "chat-message"
	// ProviderHotmart is the Hotmart commerce webhook.
	ProviderHotmart ProviderKind = "hotmart"
	// ProviderKirvano is the Kirvano commerce webhook.
	ProviderKirvano ProviderKind = "kirvano"
	// ProviderLeadCapture is the ad-form lead capture webhook.
	ProviderLeadCapture ProviderKind = "lead-capture"
)

// EventKind classifies a normalized inbound event.
type EventKind string

const (
	// EventChatMessage is a text message from the lead.
	EventChatMessage EventKind = "chat-message"
	// EventCommerceSale is a sale status change from a commerce platform.
	EventCommerceSale EventKind = "commerce-sale"
	// EventLeadCapture is an ad-form submission.
	EventLeadCapture EventKind = "lead-capture"
)

// SaleStatus enumerates commerce sale outcomes.
type SaleStatus string

const (
	SaleApproved   SaleStatus = "approved"
	SaleRefunded   SaleStatus = "refunded"
	SaleChargeback SaleStatus = "chargeback"
	SaleCancelled  SaleStatus = "cancelled"
)

// ErrMalformedEvent is returned when a webhook payload cannot be normalized.
// Handlers still acknowledge receipt to the provider to stop retries.
var ErrMalformedEvent = errors.New("malformed inbound event")

// Identity carries the external identifiers of the contact behind an event.
type Identity struct {
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// IsEmpty reports whether the identity carries no identifier at all.
func (i Identity) IsEmpty() bool {
	return i.Phone == "" && i.Email == "" && i.ExternalID == ""
}

// CommerceFields carries the sale details of a commerce event.
type CommerceFields struct {
	Status  SaleStatus `json:"status"`
	Product string     `json:"product,omitempty"`
	OrderID string     `json:"order_id,omitempty"`
	Amount  float64    `json:"amount,omitempty"`
}

// InboundEvent is the canonical lead event produced by the normalizer,
// regardless of which provider delivered it.
type InboundEvent struct {
	Identity Identity        `json:"identity"`
	Kind     EventKind       `json:"kind"`
	Text     string          `json:"text,omitempty"`
	Commerce *CommerceFields `json:"commerce,omitempty"`
	Campaign string          `json:"campaign,omitempty"` // ad campaign for lead-capture events
	Time     int64           `json:"time,omitempty"`
}

// ChannelMessage is a raw chat message delivered by a messaging service
// before normalization into an InboundEvent.
type ChannelMessage struct {
	From string `json:"from"`
	Name string `json:"name,omitempty"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}
