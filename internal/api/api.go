// Package api provides the HTTP server and webhook handlers for ZapFunnel.
//
// It exposes the provider webhook entry points (WhatsApp chat, Hotmart,
// Kirvano, lead capture), the Meta-style verification handshake and the
// read-side lead endpoints. Webhook handlers always acknowledge with 200,
// even for payloads they drop, to stop provider retry storms.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zapfunnel/zapfunnel/internal/actions"
	"github.com/zapfunnel/zapfunnel/internal/agent"
	"github.com/zapfunnel/zapfunnel/internal/flow"
	"github.com/zapfunnel/zapfunnel/internal/genai"
	"github.com/zapfunnel/zapfunnel/internal/messaging"
	"github.com/zapfunnel/zapfunnel/internal/router"
	"github.com/zapfunnel/zapfunnel/internal/store"
	"github.com/zapfunnel/zapfunnel/internal/twiliowhatsapp"
	"github.com/zapfunnel/zapfunnel/internal/whatsapp"
)

// Default server configuration
const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	VerifyToken    string // secret for the GET webhook verification handshake
	MessageChannel string // "whatsmeow" or "twilio"
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithVerifyToken sets the webhook verification secret.
func WithVerifyToken(token string) Option {
	return func(o *Opts) {
		o.VerifyToken = token
	}
}

// WithMessageChannel selects the outbound delivery channel.
func WithMessageChannel(channel string) Option {
	return func(o *Opts) {
		o.MessageChannel = channel
	}
}

// Server bundles the HTTP handlers with the turn pipeline dependencies.
type Server struct {
	store       store.Store
	processor   *flow.Processor
	msgService  messaging.Service
	verifyToken string
	httpServer  *http.Server
}

// NewServer wires a server from already constructed dependencies. Used
// directly by tests; production goes through Run.
func NewServer(s store.Store, processor *flow.Processor, msgService messaging.Service, verifyToken string) *Server {
	return &Server{
		store:       s,
		processor:   processor,
		msgService:  msgService,
		verifyToken: verifyToken,
	}
}

// Run builds the full pipeline from options and serves until the context is
// cancelled.
func Run(ctx context.Context, waOpts []whatsapp.Option, storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	cfg := Opts{Addr: DefaultAddr, MessageChannel: "whatsmeow"}
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	slog.Debug("Server.Run configuring", "addr", cfg.Addr, "channel", cfg.MessageChannel, "verify_token_set", cfg.VerifyToken != "")

	st, err := buildStore(storeOpts)
	if err != nil {
		return err
	}
	defer st.Close()

	genaiClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}

	msgService, err := buildMessagingService(cfg.MessageChannel, waOpts)
	if err != nil {
		return err
	}
	defer msgService.Stop()

	r := router.New(st)
	dispatcher := agent.NewDispatcher(genaiClient, st)
	executor := actions.NewExecutor(st, r)
	processor := flow.NewProcessor(st, r, dispatcher, executor, msgService)

	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	respHandler := messaging.NewResponseHandler(processor)
	go respHandler.Run(ctx, msgService)

	server := NewServer(st, processor, msgService, cfg.VerifyToken)
	return server.serve(ctx, cfg.Addr)
}

// buildStore selects the backend by DSN shape: postgres connection strings
// get PostgreSQL, non-empty paths get SQLite, empty means in-memory.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		slog.Warn("No database DSN configured, using in-memory store; data is lost on restart")
		return store.NewInMemoryStore(), nil
	case store.DetectDSNType(cfg.DSN) == "postgres":
		return store.NewPostgresStore(storeOpts...)
	default:
		return store.NewSQLiteStore(storeOpts...)
	}
}

func buildMessagingService(channel string, waOpts []whatsapp.Option) (messaging.Service, error) {
	switch channel {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), nil
	default:
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create whatsapp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	}
}

// Handler returns the route multiplexer, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/whatsapp", s.whatsappWebhookHandler)
	mux.HandleFunc("/webhook/hotmart", s.hotmartWebhookHandler)
	mux.HandleFunc("/webhook/kirvano", s.kirvanoWebhookHandler)
	mux.HandleFunc("/webhook/lead-capture", s.leadCaptureWebhookHandler)
	mux.HandleFunc("/leads/", s.leadsHandler)
	mux.HandleFunc("/health", s.healthHandler)

	if twilioService, ok := s.msgService.(*messaging.TwilioService); ok {
		mux.HandleFunc("/webhook/twilio", twilioService.WebhookHandler)
	}
	return mux
}

func (s *Server) serve(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ZapFunnel API listening", "addr", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		slog.Info("ZapFunnel API stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
