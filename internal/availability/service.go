package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/booking-relay/internal/altegio"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// ErrInvalidRange is returned for malformed or oversized date ranges and
// for queries that cannot be resolved to a service.
var ErrInvalidRange = errors.New("availability: invalid range")

const (
	SourceSeances   = "seances"
	SourceBookTimes = "book_times"
	SourceBoth      = "seances+book_times"

	defaultConcurrency = 4
	defaultMaxDays     = 31
)

// SlotSource is the subset of the Altegio client used for availability.
type SlotSource interface {
	BookTimes(ctx context.Context, companyID, staffID, serviceID, date string) ([]altegio.Slot, error)
	BookStaffSeances(ctx context.Context, companyID, staffID, serviceID string) (*altegio.Seances, error)
}

// Config holds defaults and limits for availability checks.
type Config struct {
	CompanyID   string
	StaffID     string
	ServiceMap  map[int]int64
	Concurrency int
	MaxDays     int
}

// Query selects a staff member, service and inclusive date range.
type Query struct {
	CompanyID string `json:"company_id,omitempty"`
	StaffID   string `json:"staff_id,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Result is the merged availability for a range.
type Result struct {
	AvailableDates []string                  `json:"available_dates"`
	SlotsByDate    map[string][]altegio.Slot `json:"slots_by_date"`
	Source         string                    `json:"source"`
	FailedDates    []string                  `json:"failed_dates,omitempty"`
}

// Service reconciles the nearest-sessions endpoint with per-day lookups.
type Service struct {
	source SlotSource
	cfg    Config
	logger *logging.Logger
}

// NewService constructs an availability service.
func NewService(source SlotSource, cfg Config, logger *logging.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = defaultMaxDays
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{source: source, cfg: cfg, logger: logger.With("component", "availability")}
}

// Resolve fills company, staff and service from the configured defaults and
// validates the date range.
func (s *Service) Resolve(q Query) (Query, time.Time, time.Time, error) {
	q.CompanyID = firstNonEmpty(q.CompanyID, s.cfg.CompanyID)
	q.StaffID = firstNonEmpty(q.StaffID, s.cfg.StaffID)
	if strings.TrimSpace(q.ServiceID) == "" && q.Duration > 0 {
		if id, ok := s.cfg.ServiceMap[q.Duration]; ok {
			q.ServiceID = strconv.FormatInt(id, 10)
		}
	}

	var missing []string
	if q.CompanyID == "" {
		missing = append(missing, "company_id")
	}
	if q.StaffID == "" {
		missing = append(missing, "staff_id")
	}
	if strings.TrimSpace(q.ServiceID) == "" {
		missing = append(missing, "service_id")
	}
	if len(missing) > 0 {
		return q, time.Time{}, time.Time{}, fmt.Errorf("%w: missing %s", ErrInvalidRange, strings.Join(missing, ", "))
	}

	start, err := ParseDate(q.StartDate)
	if err != nil {
		return q, time.Time{}, time.Time{}, err
	}
	end, err := ParseDate(q.EndDate)
	if err != nil {
		return q, time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return q, time.Time{}, time.Time{}, fmt.Errorf("%w: end_date before start_date", ErrInvalidRange)
	}
	if n := DayCount(start, end); n > s.cfg.MaxDays {
		return q, time.Time{}, time.Time{}, fmt.Errorf("%w: %d days exceeds limit of %d", ErrInvalidRange, n, s.cfg.MaxDays)
	}
	return q, start, end, nil
}

// Check returns the bookable slots for every day in the query range.
func (s *Service) Check(ctx context.Context, q Query) (*Result, error) {
	q, start, end, err := s.Resolve(q)
	if err != nil {
		return nil, err
	}
	m := newMerger(start.Format(DateLayout), end.Format(DateLayout))
	logger := s.logger.With("company_id", q.CompanyID, "staff_id", q.StaffID, "service_id", q.ServiceID)

	fanDays := Dates(start, end)
	seeded := false

	seances, err := s.source.BookStaffSeances(ctx, q.CompanyID, q.StaffID, q.ServiceID)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("nearest seances lookup failed; checking every day", "error", err)
	case seances == nil || seances.SeanceDate == "":
		logger.Warn("nearest seances lookup returned no date; checking every day")
	default:
		nearest, perr := ParseDate(seances.SeanceDate)
		switch {
		case perr != nil:
			logger.Warn("nearest seances returned bad date; checking every day", "seance_date", seances.SeanceDate)
		case nearest.After(end):
			logger.Debug("nearest seance after range", "seance_date", seances.SeanceDate)
			return m.result(SourceSeances, nil), nil
		case !nearest.Before(start):
			for _, slot := range seances.Seances {
				m.add(seances.SeanceDate, slot)
			}
			seeded = true
			fanDays = Dates(nearest.AddDate(0, 0, 1), end)
		}
	}

	failed, firstErr := s.fanOut(ctx, q, fanDays, m, logger)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(fanDays) > 0 && len(failed) == len(fanDays) && !seeded {
		return nil, firstErr
	}

	source := SourceBookTimes
	if seeded {
		source = SourceBoth
		if len(fanDays) == 0 {
			source = SourceSeances
		}
	}
	return m.result(source, failed), nil
}

// fanOut calls BookTimes for each day with bounded concurrency. Per-day
// failures are collected into the returned dates along with the first error.
func (s *Service) fanOut(ctx context.Context, q Query, days []time.Time, m *merger, logger *logging.Logger) (failed []string, firstErr error) {
	if len(days) == 0 {
		return nil, nil
	}

	type dayResult struct {
		date  string
		slots []altegio.Slot
		err   error
	}
	results := make([]dayResult, len(days))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, day := range days {
		if gctx.Err() != nil {
			break
		}
		i, date := i, day.Format(DateLayout)
		g.Go(func() error {
			slots, err := s.source.BookTimes(gctx, q.CompanyID, q.StaffID, q.ServiceID, date)
			results[i] = dayResult{date: date, slots: slots, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.date == "" {
			continue
		}
		if r.err != nil {
			logger.Warn("book times lookup failed", "date", r.date, "error", r.err)
			failed = append(failed, r.date)
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		for _, slot := range r.slots {
			m.add(r.date, slot)
		}
	}
	return failed, firstErr
}

type merger struct {
	mu     sync.Mutex
	start  string
	end    string
	seen   map[string]struct{}
	byDate map[string][]altegio.Slot
}

func newMerger(start, end string) *merger {
	return &merger{
		start:  start,
		end:    end,
		seen:   make(map[string]struct{}),
		byDate: make(map[string][]altegio.Slot),
	}
}

func (m *merger) add(queried string, slot altegio.Slot) {
	date := slot.Date()
	if date == "" {
		date = queried
	}
	if date < m.start || date > m.end {
		return
	}
	key := slot.Datetime
	if key == "" {
		key = date + "T" + slot.Time
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[key]; dup {
		return
	}
	m.seen[key] = struct{}{}
	m.byDate[date] = append(m.byDate[date], slot)
}

func (m *merger) result(source string, failed []string) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := &Result{
		AvailableDates: []string{},
		SlotsByDate:    make(map[string][]altegio.Slot, len(m.byDate)),
		Source:         source,
		FailedDates:    failed,
	}
	for date, slots := range m.byDate {
		if len(slots) == 0 {
			continue
		}
		sorted := append([]altegio.Slot(nil), slots...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return slotKey(date, sorted[i]) < slotKey(date, sorted[j])
		})
		res.SlotsByDate[date] = sorted
		res.AvailableDates = append(res.AvailableDates, date)
	}
	sort.Strings(res.AvailableDates)
	sort.Strings(res.FailedDates)
	return res
}

func slotKey(date string, slot altegio.Slot) string {
	if slot.Datetime != "" {
		return slot.Datetime
	}
	return date + "T" + slot.Time
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
