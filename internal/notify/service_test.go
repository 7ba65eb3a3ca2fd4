package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/booking-relay/internal/events"
)

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockChat struct {
	sent    []string
	callErr error
}

func (m *mockChat) Notify(ctx context.Context, message string) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, message)
	return nil
}

func paidEvent() events.PaymentSucceededV1 {
	return events.PaymentSucceededV1{
		EventID:     "evt_1",
		SessionID:   "cs_test_1",
		AmountTotal: 40000,
		Currency:    "aed",
		Client:      events.Client{Name: "Jane_Doe", Phone: "+971500000000", Email: "jane@example.com"},
		Datetime:    "2025-10-22T10:00:00+04:00",
		RecordID:    555,
		OccurredAt:  time.Now(),
	}
}

func TestService_BookingCreated(t *testing.T) {
	chat := &mockChat{}
	svc := NewService(chat, nil, nil)

	err := svc.BookingCreated(context.Background(), events.BookingCreatedV1{
		RecordID:  555,
		ServiceID: "12200654",
		Duration:  60,
		Datetime:  "2025-10-22T10:00:00+04:00",
		Client:    events.Client{Name: "Jane", Phone: "+971500000000"},
		Comment:   "first *visit*",
	})
	if err != nil {
		t.Fatalf("BookingCreated() error = %v", err)
	}
	if len(chat.sent) != 1 {
		t.Fatalf("expected 1 chat message, got %d", len(chat.sent))
	}
	msg := chat.sent[0]
	if !strings.Contains(msg, "*New booking*") || !strings.Contains(msg, "(60 min)") {
		t.Errorf("unexpected message: %s", msg)
	}
	if !strings.Contains(msg, `first \*visit\*`) {
		t.Errorf("comment should be escaped: %s", msg)
	}
	if strings.Contains(msg, "*Email:*") {
		t.Errorf("email line should be omitted when empty: %s", msg)
	}
}

func TestService_PaymentSucceeded_BothChannels(t *testing.T) {
	chat := &mockChat{}
	email := &mockEmailSender{}
	svc := NewService(chat, email, nil)

	if err := svc.PaymentSucceeded(context.Background(), paidEvent()); err != nil {
		t.Fatalf("PaymentSucceeded() error = %v", err)
	}
	if len(chat.sent) != 1 || !strings.Contains(chat.sent[0], "400.00 AED") {
		t.Fatalf("unexpected chat messages %v", chat.sent)
	}
	if !strings.Contains(chat.sent[0], `Jane\_Doe`) {
		t.Errorf("name should be escaped: %s", chat.sent[0])
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(email.sent))
	}
	if email.sent[0].To != "jane@example.com" || !strings.Contains(email.sent[0].Body, "Booking reference: 555") {
		t.Errorf("unexpected email %+v", email.sent[0])
	}
}

func TestService_PaymentSucceeded_NoEmailAddress(t *testing.T) {
	email := &mockEmailSender{}
	svc := NewService(&mockChat{}, email, nil)
	evt := paidEvent()
	evt.Client.Email = ""

	if err := svc.PaymentSucceeded(context.Background(), evt); err != nil {
		t.Fatalf("PaymentSucceeded() error = %v", err)
	}
	if len(email.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(email.sent))
	}
}

func TestService_PaymentSucceeded_JoinsErrors(t *testing.T) {
	chatErr := errors.New("chat down")
	mailErr := errors.New("mail down")
	svc := NewService(&mockChat{callErr: chatErr}, &mockEmailSender{callErr: mailErr}, nil)

	err := svc.PaymentSucceeded(context.Background(), paidEvent())
	if !errors.Is(err, chatErr) || !errors.Is(err, mailErr) {
		t.Fatalf("expected both errors joined, got %v", err)
	}
}

func TestService_ChatNotConfiguredIsSkipped(t *testing.T) {
	svc := NewService(&mockChat{callErr: ErrNotConfigured}, nil, nil)
	if err := svc.PaymentFailed(context.Background(), events.PaymentFailedV1{SessionID: "cs_1", Reason: "expired"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestService_BookingFailed(t *testing.T) {
	chat := &mockChat{}
	svc := NewService(chat, nil, nil)

	err := svc.BookingFailed(context.Background(), events.BookingFailedV1{
		SessionID: "cs_test_9",
		Error:     "slot is taken",
		Client:    events.Client{Name: "Jane", Phone: "+971500000000"},
	})
	if err != nil {
		t.Fatalf("BookingFailed() error = %v", err)
	}
	if len(chat.sent) != 1 || !strings.Contains(chat.sent[0], `cs\_test\_9`) {
		t.Fatalf("unexpected chat messages %v", chat.sent)
	}
}

func TestService_NilChannels(t *testing.T) {
	svc := NewService(nil, nil, nil)
	if err := svc.PaymentSucceeded(context.Background(), paidEvent()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
