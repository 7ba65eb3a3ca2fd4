package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-relay/internal/altegio"
	"github.com/wolfman30/booking-relay/internal/booking"
)

type fakeBookings struct {
	result *booking.Result
	err    error
	last   booking.Request
}

func (f *fakeBookings) Create(ctx context.Context, req booking.Request) (*booking.Result, error) {
	f.last = req
	return f.result, f.err
}

func TestBookingCreate(t *testing.T) {
	fake := &fakeBookings{result: &booking.Result{RecordID: 42, RecordHash: "abc", Datetime: "2025-10-22T10:00:00+04:00", ServiceID: "12200654"}}
	h := NewBookingHandler(fake, nil)

	body := `{"duration":60,"datetime":"2025-10-22T10:00","client":{"name":"Jane","phone":"+971500000000"},"staff_id":2}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var got booking.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(42), got.RecordID)
	assert.Equal(t, "Jane", fake.last.Client.Name)
	assert.Equal(t, altegio.ID("2"), fake.last.StaffID)
	assert.False(t, fake.last.Paid)
}

func TestBookingCreateErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: client phone is required", booking.ErrInvalidRequest), http.StatusBadRequest},
		{"not configured", altegio.ErrNotConfigured, http.StatusServiceUnavailable},
		{"slot taken", &altegio.APIError{StatusCode: 422, Body: "busy", Message: "The time is busy"}, http.StatusUnprocessableEntity},
		{"transport", fmt.Errorf("altegio: request: EOF"), http.StatusBadGateway},
		{"timeout", fmt.Errorf("altegio: request: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewBookingHandler(&fakeBookings{err: tc.err}, nil)
			rec := httptest.NewRecorder()
			h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{}`)))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
