package altegio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultServiceMap maps session length in minutes to the Altegio service id
// of the matching massage session.
var DefaultServiceMap = map[int]int64{
	30:  12199769,
	60:  12200654,
	90:  12200653,
	120: 12203754,
}

// ErrNotConfigured is returned when the client has no API token.
var ErrNotConfigured = errors.New("altegio: client not configured")

// Slot is a bookable start time.
type Slot struct {
	Time         string `json:"time"`
	SeanceLength int    `json:"seance_length"`
	Datetime     string `json:"datetime"`
}

// Date returns the YYYY-MM-DD part of Datetime, or "" when it is missing.
func (s Slot) Date() string {
	if len(s.Datetime) < 10 {
		return ""
	}
	return s.Datetime[:10]
}

// Seances is the nearest bookable day for a staff member.
type Seances struct {
	SeanceDate string `json:"seance_date"`
	Seances    []Slot `json:"seances"`
}

// Service is a bookable service offered by a company.
type Service struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	PriceMin     float64 `json:"price_min"`
	PriceMax     float64 `json:"price_max"`
	SeanceLength int     `json:"seance_length"`
}

// Appointment is one entry of a booking record.
type Appointment struct {
	ID       int     `json:"id"`
	Services []int64 `json:"services"`
	StaffID  int64   `json:"staff_id"`
	Datetime string  `json:"datetime"`
}

// RecordRequest is the body of POST /book_record/{company}.
type RecordRequest struct {
	Phone        string        `json:"phone"`
	Fullname     string        `json:"fullname"`
	Email        string        `json:"email,omitempty"`
	Comment      string        `json:"comment,omitempty"`
	Appointments []Appointment `json:"appointments"`
}

// RecordResult identifies a created appointment.
type RecordResult struct {
	ID         int    `json:"id"`
	RecordID   int64  `json:"record_id"`
	RecordHash string `json:"record_hash"`
}

// APIError is a non-2xx (or success=false) response from Altegio.
type APIError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("altegio API returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("altegio API returned %d: %s", e.StatusCode, truncate(e.Body, 300))
}

// Payload returns the body as raw JSON when it parses, otherwise as a string.
func (e *APIError) Payload() any {
	trimmed := strings.TrimSpace(e.Body)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return e.Body
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
}

func (e envelope) message() string {
	var meta struct {
		Message string `json:"message"`
	}
	if len(e.Meta) > 0 && json.Unmarshal(e.Meta, &meta) == nil && meta.Message != "" {
		return meta.Message
	}
	return "request failed"
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ID is a company, staff or service identifier. The booking form sends
// these as either JSON strings or numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("altegio: id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}
