package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/booking-relay/internal/altegio"
	"github.com/wolfman30/booking-relay/internal/availability"
	"github.com/wolfman30/booking-relay/internal/http/respond"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// Scheduler is the subset of the Altegio client the relay endpoints use.
type Scheduler interface {
	Configured() bool
	BookTimesRaw(ctx context.Context, companyID, staffID, serviceID, date string) (json.RawMessage, error)
	BookTimes(ctx context.Context, companyID, staffID, serviceID, date string) ([]altegio.Slot, error)
	BookStaffSeancesRaw(ctx context.Context, companyID, staffID, serviceID string) (json.RawMessage, error)
	BookServices(ctx context.Context, companyID, staffID string) ([]altegio.Service, error)
}

// AvailabilityChecker resolves bookable days for a date range.
type AvailabilityChecker interface {
	Check(ctx context.Context, q availability.Query) (*availability.Result, error)
}

// RelayConfig holds the ids used when the form leaves them out.
type RelayConfig struct {
	CompanyID  string
	StaffID    string
	ServiceMap map[int]int64
	DemoSlots  bool
	Location   *time.Location
}

// RelayHandler proxies slot, service and availability lookups to Altegio.
type RelayHandler struct {
	scheduler    Scheduler
	availability AvailabilityChecker
	cfg          RelayConfig
	logger       *logging.Logger
}

func NewRelayHandler(scheduler Scheduler, checker AvailabilityChecker, cfg RelayConfig, logger *logging.Logger) *RelayHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ServiceMap == nil {
		cfg.ServiceMap = altegio.DefaultServiceMap
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &RelayHandler{
		scheduler:    scheduler,
		availability: checker,
		cfg:          cfg,
		logger:       logger.With("component", "relay"),
	}
}

// GetSlots handles GET /api/slots?companyId=&staffId=&serviceId=&date=
// and returns the Altegio book_times response untouched.
func (h *RelayHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	company := firstNonEmpty(q.Get("companyId"), h.cfg.CompanyID)
	staff := firstNonEmpty(q.Get("staffId"), h.cfg.StaffID)
	service := h.serviceFor(q.Get("serviceId"), q.Get("duration"))
	date := strings.TrimSpace(q.Get("date"))
	if missing := missingParams("companyId", company, "staffId", staff, "serviceId", service, "date", date); missing != "" {
		respond.Error(w, http.StatusBadRequest, missing)
		return
	}
	if _, err := availability.ParseDate(date); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := h.scheduler.BookTimesRaw(r.Context(), company, staff, service, date)
	if err != nil {
		writeUpstreamError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, raw)
}

type slotsRequest struct {
	Date      string     `json:"date"`
	ServiceID altegio.ID `json:"service_id"`
	StaffID   altegio.ID `json:"staff_id"`
	CompanyID altegio.ID `json:"company_id"`
	Duration  int        `json:"duration"`
}

// PostSlots handles POST /api/slots and returns a flat slot list for one day.
// With DEMO_SLOTS on and no Altegio token it answers with fixed hourly slots.
func (h *RelayHandler) PostSlots(w http.ResponseWriter, r *http.Request) {
	var req slotsRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	day, err := availability.ParseDate(req.Date)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.cfg.DemoSlots && !h.scheduler.Configured() {
		h.logger.Debug("serving demo slots", "date", req.Date)
		respond.JSON(w, http.StatusOK, demoSlots(day, req.Duration, h.cfg.Location))
		return
	}

	company := firstNonEmpty(req.CompanyID.String(), h.cfg.CompanyID)
	staff := firstNonEmpty(req.StaffID.String(), h.cfg.StaffID)
	service := h.serviceFor(req.ServiceID.String(), strconv.Itoa(req.Duration))
	if missing := missingParams("company_id", company, "staff_id", staff, "service_id", service); missing != "" {
		respond.Error(w, http.StatusBadRequest, missing)
		return
	}

	slots, err := h.scheduler.BookTimes(r.Context(), company, staff, service, req.Date)
	if err != nil {
		writeUpstreamError(w, h.logger, err)
		return
	}
	if slots == nil {
		slots = []altegio.Slot{}
	}
	respond.JSON(w, http.StatusOK, slots)
}

// NearestSlots handles GET /api/nearest-slots and returns the Altegio
// book_staff_seances response untouched.
func (h *RelayHandler) NearestSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	company := firstNonEmpty(q.Get("companyId"), h.cfg.CompanyID)
	staff := firstNonEmpty(q.Get("staffId"), h.cfg.StaffID)
	service := h.serviceFor(q.Get("serviceId"), q.Get("duration"))
	if missing := missingParams("companyId", company, "staffId", staff, "serviceId", service); missing != "" {
		respond.Error(w, http.StatusBadRequest, missing)
		return
	}

	raw, err := h.scheduler.BookStaffSeancesRaw(r.Context(), company, staff, service)
	if err != nil {
		writeUpstreamError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, raw)
}

// Services handles GET /api/services?companyId=&staffId=.
func (h *RelayHandler) Services(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	company := firstNonEmpty(q.Get("companyId"), h.cfg.CompanyID)
	staff := firstNonEmpty(q.Get("staffId"), h.cfg.StaffID)
	if company == "" {
		respond.Error(w, http.StatusBadRequest, "missing companyId")
		return
	}

	services, err := h.scheduler.BookServices(r.Context(), company, staff)
	if err != nil {
		writeUpstreamError(w, h.logger, err)
		return
	}
	if services == nil {
		services = []altegio.Service{}
	}
	respond.JSON(w, http.StatusOK, services)
}

type availabilityRequest struct {
	CompanyID altegio.ID `json:"company_id"`
	StaffID   altegio.ID `json:"staff_id"`
	ServiceID altegio.ID `json:"service_id"`
	Duration  int        `json:"duration"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date"`
}

type availabilityResponse struct {
	*availability.Result
	ServiceID string `json:"service_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Availability handles POST /api/availability.
func (h *RelayHandler) Availability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.availability.Check(r.Context(), availability.Query{
		CompanyID: req.CompanyID.String(),
		StaffID:   req.StaffID.String(),
		ServiceID: req.ServiceID.String(),
		Duration:  req.Duration,
		StartDate: strings.TrimSpace(req.StartDate),
		EndDate:   strings.TrimSpace(req.EndDate),
	})
	if err != nil {
		writeUpstreamError(w, h.logger, err)
		return
	}

	h.logger.Info("availability checked",
		"start_date", req.StartDate,
		"end_date", req.EndDate,
		"available", len(result.AvailableDates),
		"failed", len(result.FailedDates),
		"source", result.Source,
	)
	respond.JSON(w, http.StatusOK, availabilityResponse{
		Result:    result,
		ServiceID: h.serviceFor(req.ServiceID.String(), strconv.Itoa(req.Duration)),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
}

func (h *RelayHandler) serviceFor(serviceID, duration string) string {
	if id := strings.TrimSpace(serviceID); id != "" {
		return id
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(duration))
	if err != nil || minutes <= 0 {
		return ""
	}
	if id, ok := h.cfg.ServiceMap[minutes]; ok {
		return strconv.FormatInt(id, 10)
	}
	return ""
}

// demoSlots returns hourly slots from 10:00 to 17:00 local time.
func demoSlots(day time.Time, duration int, loc *time.Location) []altegio.Slot {
	if duration <= 0 {
		duration = 60
	}
	slots := make([]altegio.Slot, 0, 8)
	for hour := 10; hour <= 17; hour++ {
		start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
		slots = append(slots, altegio.Slot{
			Time:         start.Format("15:04"),
			SeanceLength: duration * 60,
			Datetime:     start.Format(time.RFC3339),
		})
	}
	return slots
}

// missingParams takes name/value pairs and reports the names with empty values.
func missingParams(pairs ...string) string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) == 0 {
		return ""
	}
	return fmt.Sprintf("missing %s", strings.Join(missing, ", "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
