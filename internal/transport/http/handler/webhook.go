package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"aligncall/internal/app"
	"aligncall/internal/transport/http/response"
)

type callStarter interface {
	HandleStarted(ctx context.Context, payload []byte) (*app.EventOutcome, error)
}

type rawPublisher interface {
	PublishRaw(ctx context.Context, body []byte) error
}

// WebhookHandler receives call lifecycle events from the voice platform.
// Completion events are queued; call.started is applied inline.
type WebhookHandler struct {
	events callStarter
	queue  rawPublisher
	logger *slog.Logger
}

func NewWebhookHandler(events callStarter, queue rawPublisher, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{events: events, queue: queue, logger: logger}
}

func (h *WebhookHandler) CallEvents(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	ctx := c.Request.Context()
	eventType := app.EventType(body)
	h.logger.InfoContext(ctx, "call event received", "event_type", eventType)

	switch {
	case app.IsCompletionEvent(eventType):
		if err := h.queue.PublishRaw(ctx, body); err != nil {
			h.logger.ErrorContext(ctx, "queue call event failed", "event_type", eventType, "error", err)
			response.Error(c, http.StatusServiceUnavailable, response.CodeQueueUnavailable, "queue call event failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "received",
			"event_type": eventType,
			"message":    "Webhook queued for background processing",
		})
	case eventType == "call.started":
		out, err := h.events.HandleStarted(ctx, body)
		if err != nil {
			if errors.Is(err, app.ErrMissingCallID) {
				response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
				return
			}
			h.logger.ErrorContext(ctx, "handle call.started failed", "error", err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "handle call event failed")
			return
		}
		out.EventType = eventType
		c.JSON(http.StatusOK, out)
	default:
		c.JSON(http.StatusOK, gin.H{
			"status":     "received",
			"event_type": eventType,
			"message":    "Event type not handled",
		})
	}
}
