package events

import (
	"errors"
	"testing"

	"github.com/zapfunnel/zapfunnel/internal/models"
)

func TestNormalizeChatMessage(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"contacts": [{"profile": {"name": "Maria"}, "wa_id": "5511999990001"}],
			"messages": [{"from": "5511999990001", "timestamp": "1714000000", "type": "text", "text": {"body": "quero comprar o curso"}}]
		}}]}]
	}`)

	event, err := Normalize(models.ProviderChatMessage, payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if event == nil {
		t.Fatal("expected an event")
	}
	if event.Kind != models.EventChatMessage {
		t.Errorf("expected kind %s, got %s", models.EventChatMessage, event.Kind)
	}
	if event.Identity.Phone != "+5511999990001" {
		t.Errorf("expected normalized phone, got %q", event.Identity.Phone)
	}
	if event.Identity.Name != "Maria" {
		t.Errorf("expected contact name Maria, got %q", event.Identity.Name)
	}
	if event.Text != "quero comprar o curso" {
		t.Errorf("unexpected text: %q", event.Text)
	}
	if event.Time != 1714000000 {
		t.Errorf("expected timestamp 1714000000, got %d", event.Time)
	}
}

func TestNormalizeChatStatusCallback(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"statuses": [{"id": "wamid.x", "status": "delivered"}]
		}}]}]
	}`)

	event, err := Normalize(models.ProviderChatMessage, payload)
	if err != nil {
		t.Fatalf("expected status callback to be dropped cleanly, got %v", err)
	}
	if event != nil {
		t.Errorf("expected nil event for status callback, got %+v", event)
	}
}

func TestNormalizeChatMalformed(t *testing.T) {
	_, err := Normalize(models.ProviderChatMessage, []byte(`{not json`))
	if !errors.Is(err, models.ErrMalformedEvent) {
		t.Errorf("expected ErrMalformedEvent, got %v", err)
	}

	payload := []byte(`{"entry": [{"changes": [{"value": {"messages": [{"from": "", "text": {"body": ""}}]}}]}]}`)
	_, err = Normalize(models.ProviderChatMessage, payload)
	if !errors.Is(err, models.ErrMalformedEvent) {
		t.Errorf("expected ErrMalformedEvent for empty message, got %v", err)
	}
}

func TestNormalizeHotmartApproved(t *testing.T) {
	payload := []byte(`{
		"event": "PURCHASE_APPROVED",
		"data": {
			"buyer": {"name": "João", "email": "joao@example.com", "checkout_phone": "+55 (11) 99999-0002"},
			"product": {"name": "Curso Completo"},
			"purchase": {"transaction": "HP1234", "price": {"value": 297.0}}
		}
	}`)

	event, err := Normalize(models.ProviderHotmart, payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if event.Kind != models.EventCommerceSale {
		t.Errorf("expected kind %s, got %s", models.EventCommerceSale, event.Kind)
	}
	if event.Commerce == nil || event.Commerce.Status != models.SaleApproved {
		t.Fatalf("expected approved sale, got %+v", event.Commerce)
	}
	if event.Identity.Phone != "+5511999990002" {
		t.Errorf("expected formatting stripped from phone, got %q", event.Identity.Phone)
	}
	if event.Identity.Email != "joao@example.com" {
		t.Errorf("unexpected email: %q", event.Identity.Email)
	}
	if event.Commerce.Product != "Curso Completo" || event.Commerce.OrderID != "HP1234" {
		t.Errorf("unexpected commerce fields: %+v", event.Commerce)
	}
}

func TestNormalizeHotmartIgnoredEvent(t *testing.T) {
	payload := []byte(`{"event": "PURCHASE_BILLET_PRINTED", "data": {"buyer": {"email": "x@example.com"}}}`)
	event, err := Normalize(models.ProviderHotmart, payload)
	if err != nil {
		t.Fatalf("expected unknown event to be dropped cleanly, got %v", err)
	}
	if event != nil {
		t.Errorf("expected nil event, got %+v", event)
	}
}

func TestNormalizeHotmartNoIdentity(t *testing.T) {
	payload := []byte(`{"event": "PURCHASE_REFUNDED", "data": {}}`)
	_, err := Normalize(models.ProviderHotmart, payload)
	if !errors.Is(err, models.ErrMalformedEvent) {
		t.Errorf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestNormalizeKirvano(t *testing.T) {
	payload := []byte(`{
		"event": "SALE_REFUNDED",
		"sale_id": "KV-9",
		"customer": {"name": "Ana", "email": "ana@example.com", "phone_number": "5511999990003"},
		"products": [{"name": "Mentoria"}],
		"total_price": 997.0
	}`)

	event, err := Normalize(models.ProviderKirvano, payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if event.Commerce == nil || event.Commerce.Status != models.SaleRefunded {
		t.Fatalf("expected refunded sale, got %+v", event.Commerce)
	}
	if event.Commerce.Product != "Mentoria" || event.Commerce.OrderID != "KV-9" {
		t.Errorf("unexpected commerce fields: %+v", event.Commerce)
	}
	if event.Identity.Phone != "+5511999990003" {
		t.Errorf("unexpected phone: %q", event.Identity.Phone)
	}
}

func TestNormalizeLeadCapture(t *testing.T) {
	payload := []byte(`{"name": "Pedro", "phone": "11 99999-0004", "email": "pedro@example.com", "campaign": "black-friday"}`)

	event, err := Normalize(models.ProviderLeadCapture, payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if event.Kind != models.EventLeadCapture {
		t.Errorf("expected kind %s, got %s", models.EventLeadCapture, event.Kind)
	}
	if event.Campaign != "black-friday" {
		t.Errorf("unexpected campaign: %q", event.Campaign)
	}
	if event.Identity.Phone != "+11999990004" {
		t.Errorf("unexpected phone: %q", event.Identity.Phone)
	}
}

func TestNormalizeLeadCaptureNoContact(t *testing.T) {
	_, err := Normalize(models.ProviderLeadCapture, []byte(`{"campaign": "x"}`))
	if !errors.Is(err, models.ErrMalformedEvent) {
		t.Errorf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestNormalizeUnknownProvider(t *testing.T) {
	_, err := Normalize(models.ProviderKind("telegram"), []byte(`{}`))
	if !errors.Is(err, models.ErrMalformedEvent) {
		t.Errorf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestNormalizeChannelMessage(t *testing.T) {
	event, err := NormalizeChannelMessage(models.ChannelMessage{From: "5511999990005", Name: "Lia", Body: "oi", Time: 42})
	if err != nil {
		t.Fatalf("NormalizeChannelMessage failed: %v", err)
	}
	if event.Identity.Phone != "+5511999990005" || event.Text != "oi" || event.Time != 42 {
		t.Errorf("unexpected event: %+v", event)
	}

	if _, err := NormalizeChannelMessage(models.ChannelMessage{From: "", Body: ""}); !errors.Is(err, models.ErrMalformedEvent) {
		t.Errorf("expected ErrMalformedEvent, got %v", err)
	}
}
