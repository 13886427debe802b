package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/warrantykeeper/warranty-server-go/internal/errors"
	"github.com/warrantykeeper/warranty-server-go/internal/gateway"
	"github.com/warrantykeeper/warranty-server-go/internal/httputil"
)

// CallbackEvent carries a button press: the action token the button was
// created with and a reference to the message the button is attached to.
type CallbackEvent struct {
	Data       string `json:"data"`
	MessageRef string `json:"messageRef"`
}

// GatewayEvent is the webhook envelope the chat platform posts for every
// user interaction. Exactly one of Text and Callback is set.
type GatewayEvent struct {
	EventID  string         `json:"eventId"`
	UserID   string         `json:"userId"`
	Text     *string        `json:"text,omitempty"`
	Callback *CallbackEvent `json:"callback,omitempty"`
}

// Dispatcher routes decoded gateway events into the conversation layer.
type Dispatcher interface {
	HandleText(ctx context.Context, userID, text string)
	HandleCallback(ctx context.Context, userID, action string, messageRef gateway.MessageRef)
}

type WebhookHandler struct {
	dispatcher Dispatcher
}

func NewWebhookHandler(dispatcher Dispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

// Webhook accepts a gateway event and dispatches it. The platform retries
// non-2xx responses, so processing failures after a successful decode still
// return 200; only malformed envelopes are rejected.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var event GatewayEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		log.Warn().Err(err).Msg("invalid gateway webhook request")
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if event.UserID == "" || (event.Text == nil && event.Callback == nil) {
		log.Warn().Str("event_id", event.EventID).Msg("incomplete gateway event")
		httputil.WriteError(w, apperrors.InvalidInput("event", "userId and one of text or callback are required"))
		return
	}

	ctx := r.Context()

	switch {
	case event.Text != nil:
		log.Info().
			Str("event_id", event.EventID).
			Str("user_id", event.UserID).
			Str("text", truncate(strings.TrimSpace(*event.Text), 50)).
			Msg("received text event")
		h.dispatcher.HandleText(ctx, event.UserID, *event.Text)
	default:
		log.Info().
			Str("event_id", event.EventID).
			Str("user_id", event.UserID).
			Str("action", event.Callback.Data).
			Msg("received callback event")
		h.dispatcher.HandleCallback(ctx, event.UserID, event.Callback.Data, gateway.MessageRef(event.Callback.MessageRef))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Health reports process liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}
