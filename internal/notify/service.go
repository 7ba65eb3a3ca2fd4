package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/booking-relay/internal/events"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// ChatNotifier sends an operator message to the team chat.
type ChatNotifier interface {
	Notify(ctx context.Context, message string) error
}

// Service fans domain events out to the operator chat and customer email.
type Service struct {
	chat     ChatNotifier
	email    EmailSender
	renderer Renderer
	logger   *logging.Logger
}

// NewService creates a notification service. Either channel may be nil.
func NewService(chat ChatNotifier, email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		chat:   chat,
		email:  email,
		logger: logger.With("component", "notify"),
	}
}

// BookingCreated tells operators about a new appointment.
func (s *Service) BookingCreated(ctx context.Context, evt events.BookingCreatedV1) error {
	return s.toChat(ctx, evt.EventType(), bookingCreatedTemplate, evt)
}

// PaymentSucceeded tells operators about a paid session and, when the
// client left an email, sends them a confirmation.
func (s *Service) PaymentSucceeded(ctx context.Context, evt events.PaymentSucceededV1) error {
	var errs []error
	if err := s.toChat(ctx, evt.EventType(), paymentSucceededTemplate, evt); err != nil {
		errs = append(errs, err)
	}
	if err := s.confirmationEmail(ctx, evt); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PaymentFailed tells operators a checkout expired or an async payment failed.
func (s *Service) PaymentFailed(ctx context.Context, evt events.PaymentFailedV1) error {
	return s.toChat(ctx, evt.EventType(), paymentFailedTemplate, evt)
}

// BookingFailed alerts operators that money was taken but no appointment exists.
func (s *Service) BookingFailed(ctx context.Context, evt events.BookingFailedV1) error {
	return s.toChat(ctx, evt.EventType(), bookingFailedTemplate, evt)
}

func (s *Service) toChat(ctx context.Context, eventType, tmpl string, data any) error {
	if s == nil || s.chat == nil {
		return nil
	}
	text, err := s.renderer.Render(eventType, tmpl, data)
	if err != nil {
		s.logger.Error("notify: render failed", "error", err, "event_type", eventType)
		return err
	}
	if err := s.chat.Notify(ctx, text); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			s.logger.Debug("notify: chat not configured, skipping", "event_type", eventType)
			return nil
		}
		s.logger.Error("notify: chat send failed", "error", err, "event_type", eventType)
		return fmt.Errorf("notify: chat %s: %w", eventType, err)
	}
	s.logger.Info("notify: chat message sent", "event_type", eventType)
	return nil
}

func (s *Service) confirmationEmail(ctx context.Context, evt events.PaymentSucceededV1) error {
	if s == nil || s.email == nil || strings.TrimSpace(evt.Client.Email) == "" {
		return nil
	}
	body, err := s.renderer.Render("confirmation_email", confirmationEmailTemplate, evt)
	if err != nil {
		s.logger.Error("notify: render failed", "error", err, "event_type", evt.EventType())
		return err
	}
	msg := EmailMessage{
		To:      evt.Client.Email,
		ToName:  evt.Client.Name,
		Subject: "Your booking is confirmed",
		Body:    body,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return nil
		}
		s.logger.Error("notify: confirmation email failed", "error", err, "session_id", evt.SessionID)
		return fmt.Errorf("notify: confirmation email: %w", err)
	}
	return nil
}
