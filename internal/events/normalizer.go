// Package events normalizes provider webhook payloads into canonical
// InboundEvent values.
//
// Normalization is a pure mapping: no storage access, no side effects. A
// payload that carries no actionable content (delivery receipts, unknown
// commerce event names) normalizes to (nil, nil) so handlers can acknowledge
// and drop it.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zapfunnel/zapfunnel/internal/models"
)

// Normalize converts a raw provider payload into a canonical InboundEvent.
// It returns (nil, nil) for payloads with no actionable content and a wrapped
// models.ErrMalformedEvent for payloads that cannot be interpreted.
func Normalize(provider models.ProviderKind, payload []byte) (*models.InboundEvent, error) {
	switch provider {
	case models.ProviderChatMessage:
		return normalizeChatMessage(payload)
	case models.ProviderHotmart:
		return normalizeHotmart(payload)
	case models.ProviderKirvano:
		return normalizeKirvano(payload)
	case models.ProviderLeadCapture:
		return normalizeLeadCapture(payload)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", models.ErrMalformedEvent, provider)
	}
}

// chatPayload mirrors the Meta-style webhook envelope. Only text messages are
// actionable; status callbacks arrive in the same shape with no messages.
type chatPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
				Statuses []json.RawMessage `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func normalizeChatMessage(payload []byte) (*models.InboundEvent, error) {
	var p chatPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid chat payload: %v", models.ErrMalformedEvent, err)
	}

	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			if len(value.Messages) == 0 {
				continue
			}
			msg := value.Messages[0]
			if msg.Type != "" && msg.Type != "text" {
				slog.Debug("Normalize skipping non-text chat message", "type", msg.Type, "from", msg.From)
				continue
			}
			if msg.From == "" || msg.Text.Body == "" {
				return nil, fmt.Errorf("%w: chat message missing sender or body", models.ErrMalformedEvent)
			}
			event := &models.InboundEvent{
				Identity: models.Identity{Phone: normalizePhone(msg.From)},
				Kind:     models.EventChatMessage,
				Text:     msg.Text.Body,
				Time:     parseUnixString(msg.Timestamp),
			}
			if len(value.Contacts) > 0 {
				event.Identity.Name = value.Contacts[0].Profile.Name
			}
			return event, nil
		}
	}
	// Status-only callback, nothing to route.
	slog.Debug("Normalize chat payload carries no messages")
	return nil, nil
}

// hotmartPayload mirrors the Hotmart purchase webhook.
type hotmartPayload struct {
	Event string `json:"event"`
	Data  struct {
		Buyer struct {
			Name          string `json:"name"`
			Email         string `json:"email"`
			CheckoutPhone string `json:"checkout_phone"`
		} `json:"buyer"`
		Product struct {
			Name string `json:"name"`
		} `json:"product"`
		Purchase struct {
			Transaction string `json:"transaction"`
			Price       struct {
				Value float64 `json:"value"`
			} `json:"price"`
		} `json:"purchase"`
	} `json:"data"`
}

var hotmartEvents = map[string]models.SaleStatus{
	"PURCHASE_APPROVED":   models.SaleApproved,
	"PURCHASE_COMPLETE":   models.SaleApproved,
	"PURCHASE_REFUNDED":   models.SaleRefunded,
	"PURCHASE_CHARGEBACK": models.SaleChargeback,
	"PURCHASE_CANCELED":   models.SaleCancelled,
}

func normalizeHotmart(payload []byte) (*models.InboundEvent, error) {
	var p hotmartPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid hotmart payload: %v", models.ErrMalformedEvent, err)
	}
	status, ok := hotmartEvents[p.Event]
	if !ok {
		// Billet printed, cart abandoned and friends are not routed.
		slog.Debug("Normalize skipping hotmart event", "event", p.Event)
		return nil, nil
	}

	identity := models.Identity{
		Phone: normalizePhone(p.Data.Buyer.CheckoutPhone),
		Email: p.Data.Buyer.Email,
		Name:  p.Data.Buyer.Name,
	}
	if identity.IsEmpty() {
		return nil, fmt.Errorf("%w: hotmart event %s carries no buyer identity", models.ErrMalformedEvent, p.Event)
	}
	return &models.InboundEvent{
		Identity: identity,
		Kind:     models.EventCommerceSale,
		Commerce: &models.CommerceFields{
			Status:  status,
			Product: p.Data.Product.Name,
			OrderID: p.Data.Purchase.Transaction,
			Amount:  p.Data.Purchase.Price.Value,
		},
		Time: time.Now().Unix(),
	}, nil
}

// kirvanoPayload mirrors the Kirvano sale webhook.
type kirvanoPayload struct {
	Event    string `json:"event"`
	SaleID   string `json:"sale_id"`
	Customer struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
	} `json:"customer"`
	Products []struct {
		Name string `json:"name"`
	} `json:"products"`
	TotalPrice float64 `json:"total_price"`
}

var kirvanoEvents = map[string]models.SaleStatus{
	"SALE_APPROVED":   models.SaleApproved,
	"SALE_REFUNDED":   models.SaleRefunded,
	"SALE_CHARGEBACK": models.SaleChargeback,
	"SALE_CANCELED":   models.SaleCancelled,
}

func normalizeKirvano(payload []byte) (*models.InboundEvent, error) {
	var p kirvanoPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid kirvano payload: %v", models.ErrMalformedEvent, err)
	}
	status, ok := kirvanoEvents[p.Event]
	if !ok {
		slog.Debug("Normalize skipping kirvano event", "event", p.Event)
		return nil, nil
	}

	identity := models.Identity{
		Phone: normalizePhone(p.Customer.PhoneNumber),
		Email: p.Customer.Email,
		Name:  p.Customer.Name,
	}
	if identity.IsEmpty() {
		return nil, fmt.Errorf("%w: kirvano event %s carries no customer identity", models.ErrMalformedEvent, p.Event)
	}
	event := &models.InboundEvent{
		Identity: identity,
		Kind:     models.EventCommerceSale,
		Commerce: &models.CommerceFields{
			Status:  status,
			OrderID: p.SaleID,
			Amount:  p.TotalPrice,
		},
		Time: time.Now().Unix(),
	}
	if len(p.Products) > 0 {
		event.Commerce.Product = p.Products[0].Name
	}
	return event, nil
}

// leadCapturePayload mirrors the ad-form submission webhook.
type leadCapturePayload struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Campaign string `json:"campaign"`
}

func normalizeLeadCapture(payload []byte) (*models.InboundEvent, error) {
	var p leadCapturePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid lead capture payload: %v", models.ErrMalformedEvent, err)
	}
	identity := models.Identity{
		Phone: normalizePhone(p.Phone),
		Email: p.Email,
		Name:  p.Name,
	}
	if identity.IsEmpty() {
		return nil, fmt.Errorf("%w: lead capture form carries no contact", models.ErrMalformedEvent)
	}
	return &models.InboundEvent{
		Identity: identity,
		Kind:     models.EventLeadCapture,
		Campaign: p.Campaign,
		Time:     time.Now().Unix(),
	}, nil
}

// NormalizeChannelMessage maps a message received over the live socket
// connection into the same canonical event the webhook path produces.
func NormalizeChannelMessage(msg models.ChannelMessage) (*models.InboundEvent, error) {
	if msg.From == "" || msg.Body == "" {
		return nil, fmt.Errorf("%w: channel message missing sender or body", models.ErrMalformedEvent)
	}
	return &models.InboundEvent{
		Identity: models.Identity{Phone: normalizePhone(msg.From), Name: msg.Name},
		Kind:     models.EventChatMessage,
		Text:     msg.Body,
		Time:     msg.Time,
	}, nil
}

// normalizePhone strips formatting noise so phones from every provider
// converge on one storage key.
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func parseUnixString(s string) int64 {
	var ts int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Now().Unix()
		}
		ts = ts*10 + int64(r-'0')
	}
	if ts == 0 {
		return time.Now().Unix()
	}
	return ts
}
