package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without from number")
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromWhats("whatsapp:+5511999990000")); err != nil {
		t.Errorf("expected client to be created, got %v", err)
	}
}

func TestMockClientSendMessage(t *testing.T) {
	mock := NewMockClient()
	if err := mock.SendMessage(context.Background(), "+5511999990001", "olá"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mock.SentMessages))
	}
	if mock.SentMessages[0].Body != "olá" {
		t.Errorf("expected body %q, got %q", "olá", mock.SentMessages[0].Body)
	}
}
