package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zapfunnel/zapfunnel/internal/events"
	"github.com/zapfunnel/zapfunnel/internal/models"
)

// maxWebhookBody bounds webhook payload reads.
const maxWebhookBody = 1 << 20

// whatsappWebhookHandler serves the chat channel webhook. GET performs the
// Meta-style verification handshake; POST delivers message payloads.
func (s *Server) whatsappWebhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyHandshake(w, r)
	case http.MethodPost:
		s.handleWebhook(w, r, models.ProviderChatMessage)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyHandshake echoes hub.challenge iff hub.verify_token matches the
// configured secret.
func (s *Server) verifyHandshake(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && s.verifyToken != "" && token == s.verifyToken {
		slog.Info("Server.verifyHandshake: webhook verification succeeded")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(challenge)); err != nil {
			slog.Error("Server.verifyHandshake: failed to write challenge", "error", err)
		}
		return
	}
	slog.Warn("Server.verifyHandshake: webhook verification rejected", "mode", mode)
	w.WriteHeader(http.StatusForbidden)
}

func (s *Server) hotmartWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.handleWebhook(w, r, models.ProviderHotmart)
}

func (s *Server) kirvanoWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.handleWebhook(w, r, models.ProviderKirvano)
}

func (s *Server) leadCaptureWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.handleWebhook(w, r, models.ProviderLeadCapture)
}

// handleWebhook normalizes and processes one provider payload. Malformed and
// non-actionable payloads are still acknowledged with 200 so the provider
// stops retrying; only the envelope status tells them apart.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request, provider models.ProviderKind) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		slog.Warn("Server.handleWebhook: failed to read body", "error", err, "provider", provider)
		writeJSONResponse(w, http.StatusOK, models.Ignored("unreadable payload"))
		return
	}

	event, err := events.Normalize(provider, payload)
	if err != nil {
		if errors.Is(err, models.ErrMalformedEvent) {
			slog.Warn("Server.handleWebhook: dropping malformed payload", "error", err, "provider", provider)
			writeJSONResponse(w, http.StatusOK, models.Ignored("malformed payload"))
			return
		}
		slog.Error("Server.handleWebhook: normalization failed", "error", err, "provider", provider)
		writeJSONResponse(w, http.StatusOK, models.Ignored("unprocessable payload"))
		return
	}
	if event == nil {
		slog.Debug("Server.handleWebhook: payload carries no actionable content", "provider", provider)
		writeJSONResponse(w, http.StatusOK, models.Ignored("no actionable content"))
		return
	}

	if err := s.processor.HandleEvent(context.Background(), event); err != nil {
		// The provider still gets its ack; failures are internal.
		slog.Error("Server.handleWebhook: turn failed", "error", err, "provider", provider, "kind", event.Kind)
		writeJSONResponse(w, http.StatusOK, models.Recorded("event received"))
		return
	}

	slog.Info("Server.handleWebhook: event processed", "provider", provider, "kind", event.Kind)
	writeJSONResponse(w, http.StatusOK, models.Recorded("event processed"))
}

// leadsHandler serves GET /leads/{phone} and GET /leads/{phone}/history.
func (s *Server) leadsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/leads/")
	phone, sub, _ := strings.Cut(rest, "/")
	if phone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("phone is required"))
		return
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	lead, err := s.store.GetLeadByPhone(phone)
	if err != nil {
		slog.Error("Server.leadsHandler: lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load lead"))
		return
	}
	if lead == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Lead not found"))
		return
	}

	switch sub {
	case "":
		writeJSONResponse(w, http.StatusOK, models.Success(lead))
	case "history":
		history, err := s.store.GetQueueHistory(lead.ID)
		if err != nil {
			slog.Error("Server.leadsHandler: history lookup failed", "error", err, "leadID", lead.ID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load history"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(history))
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown resource"))
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}
