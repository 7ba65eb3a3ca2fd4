package events

import "time"

// Event is a versioned domain event fanned out to notifiers.
type Event interface {
	EventType() string
}

// Client identifies the person who booked.
type Client struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

type BookingCreatedV1 struct {
	RecordID   int64     `json:"record_id"`
	RecordHash string    `json:"record_hash,omitempty"`
	CompanyID  string    `json:"company_id"`
	StaffID    string    `json:"staff_id"`
	ServiceID  string    `json:"service_id"`
	Duration   int       `json:"duration,omitempty"`
	Datetime   string    `json:"datetime"`
	Client     Client    `json:"client"`
	Comment    string    `json:"comment,omitempty"`
	Paid       bool      `json:"paid"`
	CreatedAt  time.Time `json:"created_at"`
}

func (BookingCreatedV1) EventType() string {
	return "booking.created.v1"
}

type PaymentSucceededV1 struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id"`
	AmountTotal int64     `json:"amount_total"`
	Currency    string    `json:"currency"`
	Client      Client    `json:"client"`
	Datetime    string    `json:"datetime,omitempty"`
	Duration    int       `json:"duration,omitempty"`
	RecordID    int64     `json:"record_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (PaymentSucceededV1) EventType() string {
	return "payment.succeeded.v1"
}

type PaymentFailedV1 struct {
	EventID    string    `json:"event_id"`
	SessionID  string    `json:"session_id"`
	Reason     string    `json:"reason"`
	Client     Client    `json:"client"`
	Datetime   string    `json:"datetime,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (PaymentFailedV1) EventType() string {
	return "payment.failed.v1"
}

// BookingFailedV1 reports a paid session that could not be scheduled.
type BookingFailedV1 struct {
	EventID   string    `json:"event_id"`
	SessionID string    `json:"session_id"`
	Error     string    `json:"error"`
	Client    Client    `json:"client"`
	Datetime  string    `json:"datetime,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
}

func (BookingFailedV1) EventType() string {
	return "booking.failed.v1"
}
