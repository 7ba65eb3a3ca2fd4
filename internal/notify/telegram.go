package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/booking-relay/internal/observability/metrics"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// ParseModeMarkdown is Telegram's legacy Markdown parse mode.
const ParseModeMarkdown = "Markdown"

// ErrNotConfigured is returned when a channel has no credentials.
var ErrNotConfigured = errors.New("notify: not configured")

var telegramTracer = otel.Tracer("booking-relay.internal.notify.telegram")

// TelegramError is a non-2xx or ok=false response from the Bot API.
type TelegramError struct {
	StatusCode  int
	Description string
	Body        string
}

func (e *TelegramError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram API error: status=%d description=%s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram API error: status=%d body=%s", e.StatusCode, e.Body)
}

// TelegramConfig configures a TelegramNotifier.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Timeout  time.Duration
}

// TelegramNotifier sends messages to a single chat through the Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   *logging.Logger
	metrics  *metrics.RelayMetrics
}

func NewTelegramNotifier(cfg TelegramConfig, logger *logging.Logger, m *metrics.RelayMetrics) *TelegramNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramNotifier{
		botToken: strings.TrimSpace(cfg.BotToken),
		chatID:   strings.TrimSpace(cfg.ChatID),
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		metrics:  m,
	}
}

// Configured reports whether both the token and the chat id are set.
func (n *TelegramNotifier) Configured() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

// Notify sends a Markdown message and discards the Bot API response.
func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	_, err := n.Send(ctx, message, ParseModeMarkdown)
	return err
}

// Send posts text to the configured chat and returns the raw Bot API response.
func (n *TelegramNotifier) Send(ctx context.Context, text, parseMode string) (json.RawMessage, error) {
	if !n.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, span := telegramTracer.Start(ctx, "telegram.send_message", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Int("telegram.text_length", len(text)))

	payload := map[string]any{
		"chat_id": n.chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notify: marshal telegram payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("notify: build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		n.metrics.ObserveUpstream("telegram", "send_message", 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		// The URL carries the bot token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("notify: telegram request: %w", err)
	}
	defer resp.Body.Close()
	n.metrics.ObserveUpstream("telegram", "send_message", resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("notify: read telegram response: %w", err)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	decodeErr := json.Unmarshal(respBody, &result)
	if resp.StatusCode >= http.StatusBadRequest || decodeErr != nil || !result.OK {
		tgErr := &TelegramError{
			StatusCode:  resp.StatusCode,
			Description: result.Description,
			Body:        strings.TrimSpace(string(respBody)),
		}
		n.logger.Warn("telegram API non-ok response", "status", resp.StatusCode, "description", result.Description)
		span.RecordError(tgErr)
		span.SetStatus(codes.Error, "telegram error")
		return nil, tgErr
	}
	return respBody, nil
}
