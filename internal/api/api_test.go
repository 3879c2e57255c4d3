package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/zapfunnel/zapfunnel/internal/actions"
	"github.com/zapfunnel/zapfunnel/internal/agent"
	"github.com/zapfunnel/zapfunnel/internal/flow"
	"github.com/zapfunnel/zapfunnel/internal/genai"
	"github.com/zapfunnel/zapfunnel/internal/messaging"
	"github.com/zapfunnel/zapfunnel/internal/models"
	"github.com/zapfunnel/zapfunnel/internal/router"
	"github.com/zapfunnel/zapfunnel/internal/store"
	"github.com/zapfunnel/zapfunnel/internal/whatsapp"
)

type cannedGenAI struct{ reply string }

func (c *cannedGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return c.reply, nil
}

func (c *cannedGenAI) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	return &genai.ToolCallResponse{Content: c.reply}, nil
}

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	s := store.NewInMemoryStore()
	r := router.New(s)
	msgService := messaging.NewWhatsAppService(whatsapp.NewMockClient())
	d := agent.NewDispatcher(&cannedGenAI{reply: "Olá! Posso ajudar?"}, s)
	processor := flow.NewProcessor(s, r, d, actions.NewExecutor(s, r), msgService)
	return NewServer(s, processor, msgService, "segredo-teste"), s
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	return resp
}

func TestWebhookVerificationHandshake(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet,
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=segredo-teste&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid token, got %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("expected challenge echoed, got %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet,
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=errado&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for wrong token, got %d", rec.Code)
	}
}

func TestWhatsAppWebhookProcessesMessage(t *testing.T) {
	server, s := newTestServer(t)
	payload := `{
		"entry": [{"changes": [{"value": {
			"contacts": [{"profile": {"name": "Maria"}, "wa_id": "5511999990070"}],
			"messages": [{"from": "5511999990070", "timestamp": "1714000000", "type": "text", "text": {"body": "oi"}}]
		}}]}]
	}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Status != string(models.APIStatusRecorded) {
		t.Errorf("expected recorded status, got %q", resp.Status)
	}

	lead, err := s.GetLeadByPhone("+5511999990070")
	if err != nil || lead == nil {
		t.Fatalf("expected lead created, err=%v", err)
	}
	if lead.Name != "Maria" {
		t.Errorf("expected contact name attached, got %q", lead.Name)
	}
}

// Malformed payloads are acknowledged with 200 so the provider stops retrying.
func TestWebhookMalformedPayloadStillAcked(t *testing.T) {
	server, s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack for malformed payload, got %d", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Status != string(models.APIStatusIgnored) {
		t.Errorf("expected ignored status, got %q", resp.Status)
	}
	if lead, _ := s.GetLeadByPhone("+"); lead != nil {
		t.Error("expected no lead from malformed payload")
	}
}

func TestWebhookStatusCallbackIgnored(t *testing.T) {
	server, _ := newTestServer(t)
	payload := `{"entry": [{"changes": [{"value": {"statuses": [{"status": "delivered"}]}}]}]}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Status != string(models.APIStatusIgnored) {
		t.Errorf("expected ignored status, got %q", resp.Status)
	}
}

func TestHotmartWebhookRoutesToPostSales(t *testing.T) {
	server, s := newTestServer(t)
	payload := `{
		"event": "PURCHASE_APPROVED",
		"data": {
			"buyer": {"name": "João", "email": "joao@example.com", "checkout_phone": "5511999990071"},
			"product": {"name": "Curso"},
			"purchase": {"transaction": "HP1", "price": {"value": 297.0}}
		}
	}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/hotmart", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	lead, _ := s.GetLeadByPhone("+5511999990071")
	if lead == nil {
		t.Fatal("expected lead created from purchase")
	}
	if lead.CurrentQueue != models.QueuePostSales {
		t.Errorf("expected POST_SALES, got %s", lead.CurrentQueue)
	}
}

func TestKirvanoWebhookRefundRoutesToRetention(t *testing.T) {
	server, s := newTestServer(t)
	payload := `{
		"event": "SALE_REFUNDED",
		"sale_id": "KV-1",
		"customer": {"name": "Ana", "email": "ana@example.com", "phone_number": "5511999990072"},
		"products": [{"name": "Mentoria"}],
		"total_price": 997.0
	}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/kirvano", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	lead, _ := s.GetLeadByPhone("+5511999990072")
	if lead == nil || lead.CurrentQueue != models.QueueRetention {
		t.Fatalf("expected RETENTION lead, got %+v", lead)
	}
}

func TestLeadCaptureWebhookCreatesLead(t *testing.T) {
	server, s := newTestServer(t)
	payload := `{"name": "Pedro", "phone": "5511999990073", "campaign": "instagram-ads"}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/lead-capture", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	lead, _ := s.GetLeadByPhone("+5511999990073")
	if lead == nil {
		t.Fatal("expected lead created")
	}
	tags, _ := s.GetLeadTags(lead.ID)
	if len(tags) != 1 || tags[0].Name != "origem-instagram-ads" {
		t.Errorf("expected campaign tag, got %+v", tags)
	}
}

func TestLeadsEndpoint(t *testing.T) {
	server, s := newTestServer(t)
	seed := models.Lead{
		Phone:        "+5511999990074",
		Status:       models.LeadStatusNew,
		CurrentQueue: models.QueuePreSales,
		CurrentAgent: models.AgentPreSales,
	}
	lead, _, err := s.FindOrCreateLead(seed)
	if err != nil {
		t.Fatalf("FindOrCreateLead failed: %v", err)
	}
	if err := s.AddQueueHistoryEntry(models.QueueHistoryEntry{LeadID: lead.ID, QueueType: models.QueuePreSales}); err != nil {
		t.Fatalf("AddQueueHistoryEntry failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/leads/5511999990074", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/leads/5511999990074/history", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for history, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/leads/5500000000000", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown lead, got %d", rec.Code)
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/webhook/hotmart", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
