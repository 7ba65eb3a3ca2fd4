package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/booking-relay/internal/http/respond"
	"github.com/wolfman30/booking-relay/internal/notify"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// MessageSender relays text to the operators' Telegram chat.
type MessageSender interface {
	Configured() bool
	Send(ctx context.Context, text, parseMode string) (json.RawMessage, error)
}

// TelegramHandler relays booking form messages to Telegram.
type TelegramHandler struct {
	sender MessageSender
	logger *logging.Logger
}

func NewTelegramHandler(sender MessageSender, logger *logging.Logger) *TelegramHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TelegramHandler{sender: sender, logger: logger.With("component", "telegram_relay")}
}

type sendTelegramRequest struct {
	Message string `json:"message"`
}

// Send handles POST /api/send-telegram.
func (h *TelegramHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendTelegramRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respond.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	h.relay(w, r, req.Message)
}

// SendTest handles POST /admin/telegram/test.
func (h *TelegramHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	msg := fmt.Sprintf("*Booking relay test*\n%s", time.Now().UTC().Format(time.RFC3339))
	h.relay(w, r, msg)
}

func (h *TelegramHandler) relay(w http.ResponseWriter, r *http.Request, text string) {
	data, err := h.sender.Send(r.Context(), text, notify.ParseModeMarkdown)
	if err != nil {
		writeUpstreamError(w, h.logger, err)
		return
	}
	h.logger.Info("telegram message relayed", "length", len(text))
	respond.JSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}
