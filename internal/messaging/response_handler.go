package messaging

import (
	"context"
	"log/slog"

	"github.com/zapfunnel/zapfunnel/internal/events"
	"github.com/zapfunnel/zapfunnel/internal/flow"
)

// ResponseHandler consumes incoming channel messages and runs them through
// the turn processor.
type ResponseHandler struct {
	processor *flow.Processor
}

// NewResponseHandler creates a handler bound to the given processor.
func NewResponseHandler(processor *flow.Processor) *ResponseHandler {
	return &ResponseHandler{processor: processor}
}

// Run consumes the service's message channel until the context is cancelled
// or the channel closes. Per-message failures are logged, the loop keeps
// going.
func (h *ResponseHandler) Run(ctx context.Context, service Service) {
	slog.Info("ResponseHandler starting message loop")
	for {
		select {
		case <-ctx.Done():
			slog.Info("ResponseHandler stopping, context cancelled")
			return
		case msg, ok := <-service.Messages():
			if !ok {
				slog.Info("ResponseHandler stopping, message channel closed")
				return
			}
			event, err := events.NormalizeChannelMessage(msg)
			if err != nil {
				slog.Warn("ResponseHandler dropping malformed channel message", "error", err, "from", msg.From)
				continue
			}
			if err := h.processor.HandleEvent(ctx, event); err != nil {
				slog.Error("ResponseHandler turn failed", "error", err, "from", msg.From)
			}
		}
	}
}
