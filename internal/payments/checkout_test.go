package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/wolfman30/booking-relay/internal/booking"
)

func testBookings() *booking.Service {
	return booking.NewService(nil, nil, booking.Config{CompanyID: "1252189", StaffID: "2742288"}, nil)
}

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		Request: booking.Request{
			Duration: 60,
			Datetime: "2025-10-22T10:00:00+04:00",
			Client:   booking.Client{Name: "Jane", Phone: "+971500000000", Email: "jane@example.com"},
			Comment:  "ground floor",
		},
	}
}

func newFakeStripe(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckoutService_Create(t *testing.T) {
	var form url.Values
	srv := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Errorf("expected auth header, got %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_abc","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_abc","status":"open","payment_status":"unpaid","amount_total":40000,"currency":"aed"}`))
	})

	svc := NewCheckoutService(CheckoutConfig{
		SecretKey:  "sk_test_123",
		BaseURL:    srv.URL,
		SuccessURL: "https://wakeme.ae/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://wakeme.ae/cancel",
		Prices:     map[int]int64{60: 40000},
	}, testBookings(), nil, nil, nil)

	cs, err := svc.Create(context.Background(), checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc", cs.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_abc", cs.URL)

	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "40000", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "aed", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "60 min session", form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "https://wakeme.ae/success?session_id={CHECKOUT_SESSION_ID}", form.Get("success_url"))
	assert.Equal(t, "jane@example.com", form.Get("customer_email"))
	assert.NotEmpty(t, form.Get("client_reference_id"))
	assert.Equal(t, "12200654", form.Get("metadata[service_id]"))
	assert.Equal(t, "2742288", form.Get("metadata[staff_id]"))
	assert.Equal(t, "2025-10-22T10:00:00+04:00", form.Get("metadata[datetime]"))
	assert.Equal(t, "+971500000000", form.Get("payment_intent_data[metadata][client_phone]"))
}

func TestCheckoutService_Create_ExplicitAmountAndCurrency(t *testing.T) {
	var form url.Values
	srv := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		_, _ = w.Write([]byte(`{"id":"cs_test_2","object":"checkout.session","url":"https://checkout.stripe.com/x"}`))
	})
	svc := NewCheckoutService(CheckoutConfig{SecretKey: "sk_test_123", BaseURL: srv.URL, SuccessURL: "https://wakeme.ae/ok"}, testBookings(), nil, nil, nil)

	req := checkoutRequest()
	req.Amount = 12345
	req.Currency = "USD"
	req.Description = "Gift session"
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "12345", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "Gift session", form.Get("line_items[0][price_data][product_data][name]"))
}

func TestCheckoutService_Create_Validation(t *testing.T) {
	svc := NewCheckoutService(CheckoutConfig{SecretKey: "sk_test_123", BaseURL: "http://127.0.0.1:1", SuccessURL: "https://wakeme.ae/ok"}, testBookings(), nil, nil, nil)

	_, err := svc.Create(context.Background(), checkoutRequest())
	assert.ErrorIs(t, err, ErrInvalidRequest, "no price configured for 60 minutes")

	req := checkoutRequest()
	req.Client.Phone = ""
	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)
}

func TestCheckoutService_NotConfigured(t *testing.T) {
	svc := NewCheckoutService(CheckoutConfig{}, testBookings(), nil, nil, nil)
	assert.False(t, svc.Configured())
	_, err := svc.Create(context.Background(), checkoutRequest())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = svc.Get(context.Background(), "cs_1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCheckoutService_TooManyAttempts(t *testing.T) {
	_, client := setupTestRedis(t)
	srv := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cs_test_3","object":"checkout.session","url":"https://checkout.stripe.com/x"}`))
	})
	svc := NewCheckoutService(CheckoutConfig{
		SecretKey:  "sk_test_123",
		BaseURL:    srv.URL,
		SuccessURL: "https://wakeme.ae/ok",
		Prices:     map[int]int64{60: 40000},
	}, testBookings(), NewCheckoutVelocity(client, 1, 0, nil), nil, nil)

	_, err := svc.Create(context.Background(), checkoutRequest())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), checkoutRequest())
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestCheckoutService_Get(t *testing.T) {
	srv := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/checkout/sessions/cs_test_abc" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"cs_test_abc","object":"checkout.session","status":"complete","payment_status":"paid","amount_total":40000,"currency":"aed"}`))
	})
	svc := NewCheckoutService(CheckoutConfig{SecretKey: "sk_test_123", BaseURL: srv.URL}, testBookings(), nil, nil, nil)

	cs, err := svc.Get(context.Background(), "cs_test_abc")
	require.NoError(t, err)
	assert.Equal(t, "complete", cs.Status)
	assert.Equal(t, "paid", cs.PaymentStatus)
	assert.Equal(t, int64(40000), cs.AmountTotal)
}

func TestCheckoutService_StripeError(t *testing.T) {
	srv := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session"}}`))
	})
	svc := NewCheckoutService(CheckoutConfig{SecretKey: "sk_test_123", BaseURL: srv.URL}, testBookings(), nil, nil, nil)

	_, err := svc.Get(context.Background(), "cs_missing")
	var stripeErr *stripe.Error
	require.True(t, errors.As(err, &stripeErr), "expected stripe error, got %v", err)
	assert.Equal(t, http.StatusBadRequest, stripeErr.HTTPStatusCode)
}
