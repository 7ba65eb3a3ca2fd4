package altegio

import (
	"bytes"
	"context"
	"encoding/json"
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

const (
	defaultBaseURL = "https://api.alteg.io/api/v1"
	defaultTimeout = 15 * time.Second
	acceptHeader   = "application/vnd.api.v2+json"
	providerName   = "altegio"
)

var tracer = otel.Tracer("booking-relay.internal.altegio")

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	UserToken string
	PartnerID string
	Timeout   time.Duration
	Logger    *logging.Logger
	Metrics   *metrics.RelayMetrics
}

// Client wraps the Altegio online-booking REST endpoints used by the form.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userToken  string
	partnerID  string
	logger     *logging.Logger
	metrics    *metrics.RelayMetrics
}

// NewClient constructs an Altegio REST client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(opts.Token),
		userToken:  strings.TrimSpace(opts.UserToken),
		partnerID:  strings.TrimSpace(opts.PartnerID),
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// BookTimesRaw returns the untouched book_times response for a single day.
func (c *Client) BookTimesRaw(ctx context.Context, companyID, staffID, serviceID, date string) (json.RawMessage, error) {
	path := fmt.Sprintf("/book_times/%s/%s/%s", url.PathEscape(companyID), url.PathEscape(staffID), url.PathEscape(date))
	raw, err := c.do(ctx, "book_times", http.MethodGet, path, serviceQuery(serviceID), nil)
	if err != nil {
		return nil, fmt.Errorf("altegio: book times %s: %w", date, err)
	}
	return raw, nil
}

// BookTimes returns the free start times for one day.
func (c *Client) BookTimes(ctx context.Context, companyID, staffID, serviceID, date string) ([]Slot, error) {
	raw, err := c.BookTimesRaw(ctx, companyID, staffID, serviceID, date)
	if err != nil {
		return nil, err
	}
	var slots []Slot
	if err := decodeData(raw, &slots); err != nil {
		return nil, fmt.Errorf("altegio: book times %s: %w", date, err)
	}
	return slots, nil
}

// BookStaffSeancesRaw returns the untouched nearest-sessions response.
func (c *Client) BookStaffSeancesRaw(ctx context.Context, companyID, staffID, serviceID string) (json.RawMessage, error) {
	path := fmt.Sprintf("/book_staff_seances/%s/%s/", url.PathEscape(companyID), url.PathEscape(staffID))
	raw, err := c.do(ctx, "book_staff_seances", http.MethodGet, path, serviceQuery(serviceID), nil)
	if err != nil {
		return nil, fmt.Errorf("altegio: staff seances: %w", err)
	}
	return raw, nil
}

// BookStaffSeances returns the nearest bookable day and its slots.
func (c *Client) BookStaffSeances(ctx context.Context, companyID, staffID, serviceID string) (*Seances, error) {
	raw, err := c.BookStaffSeancesRaw(ctx, companyID, staffID, serviceID)
	if err != nil {
		return nil, err
	}
	var out Seances
	if err := decodeData(raw, &out); err != nil {
		return nil, fmt.Errorf("altegio: staff seances: %w", err)
	}
	return &out, nil
}

// BookServices lists the services bookable online, optionally for one staff member.
func (c *Client) BookServices(ctx context.Context, companyID, staffID string) ([]Service, error) {
	q := url.Values{}
	if staffID != "" {
		q.Set("staff_id", staffID)
	}
	path := fmt.Sprintf("/book_services/%s", url.PathEscape(companyID))
	raw, err := c.do(ctx, "book_services", http.MethodGet, path, q, nil)
	if err != nil {
		return nil, fmt.Errorf("altegio: book services: %w", err)
	}

	var data json.RawMessage
	if err := decodeData(raw, &data); err != nil {
		return nil, fmt.Errorf("altegio: book services: %w", err)
	}
	var services []Service
	if isArray(data) {
		err = json.Unmarshal(data, &services)
	} else {
		var wrapped struct {
			Services []Service `json:"services"`
		}
		err = json.Unmarshal(data, &wrapped)
		services = wrapped.Services
	}
	if err != nil {
		return nil, fmt.Errorf("altegio: book services: decode response: %w", err)
	}
	return services, nil
}

// CreateRecord books an appointment.
func (c *Client) CreateRecord(ctx context.Context, companyID string, req RecordRequest) ([]RecordResult, error) {
	path := fmt.Sprintf("/book_record/%s", url.PathEscape(companyID))
	raw, err := c.do(ctx, "book_record", http.MethodPost, path, nil, req)
	if err != nil {
		return nil, fmt.Errorf("altegio: create record: %w", err)
	}
	var results []RecordResult
	if err := decodeData(raw, &results); err != nil {
		return nil, fmt.Errorf("altegio: create record: %w", err)
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, span := tracer.Start(ctx, "altegio."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("altegio.path", path),
	)

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.authorization())
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", "application/json")
	if c.partnerID != "" {
		req.Header.Set("X-Partner-ID", c.partnerID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(providerName, operation, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(providerName, operation, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := truncate(string(respBody), 300)
		c.logger.Warn("altegio API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, "non-2xx response")
		return nil, apiErr
	}
	return respBody, nil
}

func (c *Client) authorization() string {
	if c.userToken != "" {
		return fmt.Sprintf("Bearer %s, User %s", c.token, c.userToken)
	}
	return "Bearer " + c.token
}

func serviceQuery(serviceID string) url.Values {
	q := url.Values{}
	if serviceID != "" {
		q.Add("service_ids[]", serviceID)
	}
	return q
}

// decodeData accepts either the {success,data,meta} envelope or a bare
// payload and decodes the data part into out.
func decodeData(raw []byte, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if isArray(trimmed) {
		if err := json.Unmarshal(trimmed, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return &APIError{StatusCode: http.StatusUnprocessableEntity, Body: string(trimmed), Message: env.message()}
	}
	if env.Success == nil && env.Data == nil {
		// Not an envelope; the object itself is the payload.
		if err := json.Unmarshal(trimmed, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isArray(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
