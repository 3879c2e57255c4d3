package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/zapfunnel/zapfunnel/internal/twiliowhatsapp"
	"github.com/zapfunnel/zapfunnel/internal/whatsapp"
)

func TestCanonicalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+55 (11) 99999-0001", "+5511999990001", false},
		{"5511999990001", "+5511999990001", false},
		{"", "", true},
		{"abc", "", true},
		{"123", "", true},
	}
	for _, c := range cases {
		got, err := canonicalizePhone(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("canonicalizePhone(%q): expected error", c.in)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("canonicalizePhone(%q) = (%q, %v), want %q", c.in, got, err, c.want)
		}
	}
}

func TestWhatsAppServiceSendMessage(t *testing.T) {
	service := NewWhatsAppService(whatsapp.NewMockClient())
	if err := service.SendMessage(context.Background(), "+55 11 99999-0002", "olá"); err != nil {
		t.Errorf("SendMessage failed: %v", err)
	}
	if err := service.SendMessage(context.Background(), "???", "olá"); err == nil {
		t.Error("expected validation error for junk recipient")
	}
}

func TestTwilioServiceSendMessage(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	service := NewTwilioService(mock)

	if err := service.SendMessage(context.Background(), "5511999990003", "oi"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].To != "+5511999990003" {
		t.Errorf("expected canonicalized send, got %+v", mock.SentMessages)
	}

	if err := service.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := service.SendMessage(context.Background(), "5511999990003", "oi"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped after Stop, got %v", err)
	}
}

func TestTwilioWebhookHandlerEmitsMessage(t *testing.T) {
	service := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5511999990004")
	form.Set("Body", "tenho uma dúvida")
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	service.WebhookHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case msg := <-service.Messages():
		if msg.From != "whatsapp:+5511999990004" || msg.Body != "tenho uma dúvida" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected message on channel")
	}
}

func TestTwilioWebhookHandlerRejectsMissingFields(t *testing.T) {
	service := NewTwilioService(twiliowhatsapp.NewMockClient())

	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader("From=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	service.WebhookHandler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
