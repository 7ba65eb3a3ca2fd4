package bootstrap

import (
	appconfig "github.com/wolfman30/booking-relay/internal/config"
	"github.com/wolfman30/booking-relay/internal/notify"
	"github.com/wolfman30/booking-relay/internal/observability/metrics"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// BuildNotifier wires the Telegram relay, the confirmation email sender and
// the notify service that fans events out to both.
func BuildNotifier(cfg *appconfig.Config, logger *logging.Logger, m *metrics.RelayMetrics) (*notify.TelegramNotifier, notify.EmailSender, *notify.Service) {
	if logger == nil {
		logger = logging.Default()
	}
	telegram := notify.NewTelegramNotifier(notify.TelegramConfig{
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.TelegramChatID,
		BaseURL:  cfg.TelegramBaseURL,
	}, logger, m)
	if !telegram.Configured() {
		logger.Warn("telegram not configured; operator notifications disabled")
	}

	var email notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger, m); sg != nil {
		email = sg
	} else {
		email = notify.NewStubEmailSender(logger)
	}

	return telegram, email, notify.NewService(telegram, email, logger)
}
