// Package booking turns booking form submissions into Altegio appointments.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/booking-relay/internal/altegio"
	"github.com/wolfman30/booking-relay/internal/events"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// ErrInvalidRequest is returned when a booking request fails validation.
var ErrInvalidRequest = errors.New("booking: invalid request")

var tracer = otel.Tracer("booking-relay.internal.booking")

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Recorder creates appointments in the scheduling system.
type Recorder interface {
	CreateRecord(ctx context.Context, companyID string, req altegio.RecordRequest) ([]altegio.RecordResult, error)
}

// Notifier is told about appointments after they are created.
type Notifier interface {
	BookingCreated(ctx context.Context, evt events.BookingCreatedV1) error
}

// Config holds the defaults applied to incomplete requests.
type Config struct {
	CompanyID  string
	StaffID    string
	ServiceMap map[int]int64
	Location   *time.Location
}

// Client is the person booking.
type Client struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Request is what the booking form posts.
type Request struct {
	CompanyID altegio.ID `json:"company_id,omitempty"`
	ServiceID altegio.ID `json:"service_id,omitempty"`
	StaffID   altegio.ID `json:"staff_id,omitempty"`
	Duration  int        `json:"duration,omitempty"`
	Datetime  string     `json:"datetime"`
	Client    Client     `json:"client"`
	Comment   string     `json:"comment,omitempty"`
	// Paid is set when the request comes from a completed checkout.
	Paid bool `json:"-"`
}

// Result identifies the created appointment.
type Result struct {
	RecordID   int64  `json:"record_id"`
	RecordHash string `json:"record_hash,omitempty"`
	CompanyID  string `json:"company_id"`
	StaffID    string `json:"staff_id"`
	ServiceID  string `json:"service_id"`
	Datetime   string `json:"datetime"`
}

// Service creates appointments and announces them.
type Service struct {
	recorder Recorder
	notifier Notifier
	cfg      Config
	logger   *logging.Logger
}

func NewService(recorder Recorder, notifier Notifier, cfg Config, logger *logging.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ServiceMap == nil {
		cfg.ServiceMap = altegio.DefaultServiceMap
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		recorder: recorder,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With("component", "booking"),
	}
}

// ServiceForDuration maps a session length in minutes to a service id.
func (s *Service) ServiceForDuration(minutes int) (int64, bool) {
	id, ok := s.cfg.ServiceMap[minutes]
	return id, ok
}

// Normalize applies defaults and validates req. The returned request has
// numeric ids and an RFC3339 datetime.
func (s *Service) Normalize(req Request) (Request, error) {
	req.Client.Name = strings.TrimSpace(req.Client.Name)
	req.Client.Phone = strings.TrimSpace(req.Client.Phone)
	req.Client.Email = strings.TrimSpace(req.Client.Email)
	req.Comment = strings.TrimSpace(req.Comment)

	var problems []string
	if req.Client.Name == "" {
		problems = append(problems, "client.name is required")
	}
	if req.Client.Phone == "" {
		problems = append(problems, "client.phone is required")
	}

	if strings.TrimSpace(req.Datetime) == "" {
		problems = append(problems, "datetime is required")
	} else if dt, err := s.parseDatetime(req.Datetime); err != nil {
		problems = append(problems, "datetime must be RFC3339 or YYYY-MM-DDTHH:MM")
	} else {
		req.Datetime = dt.Format(time.RFC3339)
	}

	if req.ServiceID == "" && req.Duration > 0 {
		if id, ok := s.ServiceForDuration(req.Duration); ok {
			req.ServiceID = altegio.ID(strconv.FormatInt(id, 10))
		}
	}
	if req.ServiceID == "" {
		problems = append(problems, "service_id or a known duration is required")
	} else if !numeric(req.ServiceID) {
		problems = append(problems, "service_id must be numeric")
	}

	if req.StaffID == "" {
		req.StaffID = altegio.ID(s.cfg.StaffID)
	}
	if req.StaffID == "" {
		problems = append(problems, "staff_id is required")
	} else if !numeric(req.StaffID) {
		problems = append(problems, "staff_id must be numeric")
	}

	if req.CompanyID == "" {
		req.CompanyID = altegio.ID(s.cfg.CompanyID)
	}
	if req.CompanyID == "" {
		problems = append(problems, "company_id is required")
	}

	if len(problems) > 0 {
		return req, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return req, nil
}

// Create books the appointment in Altegio and notifies operators. A
// notification failure is logged but does not fail the booking.
func (s *Service) Create(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(attribute.Bool("booking.paid", req.Paid))

	req, err := s.Normalize(req)
	if err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("altegio.company_id", req.CompanyID.String()),
		attribute.String("altegio.service_id", req.ServiceID.String()),
	)

	serviceID, _ := strconv.ParseInt(req.ServiceID.String(), 10, 64)
	staffID, _ := strconv.ParseInt(req.StaffID.String(), 10, 64)
	record := altegio.RecordRequest{
		Phone:    req.Client.Phone,
		Fullname: req.Client.Name,
		Email:    req.Client.Email,
		Comment:  req.Comment,
		Appointments: []altegio.Appointment{{
			ID:       1,
			Services: []int64{serviceID},
			StaffID:  staffID,
			Datetime: req.Datetime,
		}},
	}

	logger := s.logger.With("company_id", req.CompanyID.String(), "staff_id", staffID, "service_id", serviceID, "datetime", req.Datetime)
	results, err := s.recorder.CreateRecord(ctx, req.CompanyID.String(), record)
	if err != nil {
		logger.Error("create record failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create record failed")
		return nil, err
	}
	if len(results) == 0 {
		logger.Error("create record returned no records")
		span.SetStatus(codes.Error, "no records")
		return nil, fmt.Errorf("booking: altegio returned no records")
	}

	res := &Result{
		RecordID:   results[0].RecordID,
		RecordHash: results[0].RecordHash,
		CompanyID:  req.CompanyID.String(),
		StaffID:    req.StaffID.String(),
		ServiceID:  req.ServiceID.String(),
		Datetime:   req.Datetime,
	}
	span.SetAttributes(attribute.Int64("altegio.record_id", res.RecordID))
	logger.Info("booking created", "record_id", res.RecordID, "paid", req.Paid, "client_phone", logging.MaskPhone(req.Client.Phone))

	if s.notifier != nil {
		evt := events.BookingCreatedV1{
			RecordID:   res.RecordID,
			RecordHash: res.RecordHash,
			CompanyID:  res.CompanyID,
			StaffID:    res.StaffID,
			ServiceID:  res.ServiceID,
			Duration:   s.DurationFor(req),
			Datetime:   res.Datetime,
			Client:     events.Client{Name: req.Client.Name, Phone: req.Client.Phone, Email: req.Client.Email},
			Comment:    req.Comment,
			Paid:       req.Paid,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.notifier.BookingCreated(ctx, evt); err != nil {
			logger.Warn("booking notification failed", "error", err, "record_id", res.RecordID)
		}
	}
	return res, nil
}

// DurationFor returns the session length of req, looking it up from the
// service id when the form did not send one. Zero means unknown.
func (s *Service) DurationFor(req Request) int {
	if req.Duration > 0 {
		return req.Duration
	}
	for minutes, id := range s.cfg.ServiceMap {
		if strconv.FormatInt(id, 10) == req.ServiceID.String() {
			return minutes
		}
	}
	return 0
}

func (s *Service) parseDatetime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, s.cfg.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised datetime %q", value)
}

func numeric(id altegio.ID) bool {
	_, err := strconv.ParseInt(id.String(), 10, 64)
	return err == nil
}
