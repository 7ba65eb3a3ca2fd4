package availability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-relay/internal/altegio"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

type stubSource struct {
	mu         sync.Mutex
	seances    *altegio.Seances
	seancesErr error
	days       map[string][]altegio.Slot
	dayErr     map[string]error
	calls      []string

	inFlight    int32
	maxInFlight int32
	delay       time.Duration
}

func (s *stubSource) BookStaffSeances(ctx context.Context, companyID, staffID, serviceID string) (*altegio.Seances, error) {
	return s.seances, s.seancesErr
}

func (s *stubSource) BookTimes(ctx context.Context, companyID, staffID, serviceID, date string) ([]altegio.Slot, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		old := atomic.LoadInt32(&s.maxInFlight)
		if n <= old || atomic.CompareAndSwapInt32(&s.maxInFlight, old, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.calls = append(s.calls, date)
	s.mu.Unlock()
	if err := s.dayErr[date]; err != nil {
		return nil, err
	}
	return s.days[date], nil
}

func slot(date, hhmm string) altegio.Slot {
	return altegio.Slot{Time: hhmm, SeanceLength: 3600, Datetime: date + "T" + hhmm + ":00+04:00"}
}

func newTestService(src SlotSource) *Service {
	return NewService(src, Config{CompanyID: "1", StaffID: "2", Concurrency: 2, MaxDays: 31}, logging.Default())
}

func query(start, end string) Query {
	return Query{ServiceID: "12200654", StartDate: start, EndDate: end}
}

func TestCheck_FullFanOutWhenProbeFails(t *testing.T) {
	src := &stubSource{
		seancesErr: errors.New("boom"),
		days: map[string][]altegio.Slot{
			"2025-10-20": {slot("2025-10-20", "12:00"), slot("2025-10-20", "10:00")},
			"2025-10-22": {slot("2025-10-22", "09:00")},
		},
	}
	res, err := newTestService(src).Check(context.Background(), query("2025-10-20", "2025-10-22"))
	require.NoError(t, err)

	assert.Equal(t, SourceBookTimes, res.Source)
	assert.Equal(t, []string{"2025-10-20", "2025-10-22"}, res.AvailableDates)
	assert.Equal(t, "10:00", res.SlotsByDate["2025-10-20"][0].Time)
	assert.Len(t, src.calls, 3)
}

func TestCheck_SeedsFromNearestSeance(t *testing.T) {
	src := &stubSource{
		seances: &altegio.Seances{
			SeanceDate: "2025-10-21",
			Seances:    []altegio.Slot{slot("2025-10-21", "11:00")},
		},
		days: map[string][]altegio.Slot{
			"2025-10-22": {slot("2025-10-22", "14:00")},
		},
	}
	res, err := newTestService(src).Check(context.Background(), query("2025-10-20", "2025-10-22"))
	require.NoError(t, err)

	assert.Equal(t, SourceBoth, res.Source)
	assert.Equal(t, []string{"2025-10-21", "2025-10-22"}, res.AvailableDates)
	assert.Equal(t, []string{"2025-10-22"}, src.calls, "days up to the nearest seance should not be fetched")
}

func TestCheck_NearestSeanceOnLastDay(t *testing.T) {
	src := &stubSource{
		seances: &altegio.Seances{
			SeanceDate: "2025-10-22",
			Seances:    []altegio.Slot{slot("2025-10-22", "11:00")},
		},
	}
	res, err := newTestService(src).Check(context.Background(), query("2025-10-20", "2025-10-22"))
	require.NoError(t, err)

	assert.Equal(t, SourceSeances, res.Source)
	assert.Empty(t, src.calls)
	assert.Equal(t, []string{"2025-10-22"}, res.AvailableDates)
}

func TestCheck_NearestSeanceAfterRange(t *testing.T) {
	src := &stubSource{
		seances: &altegio.Seances{SeanceDate: "2025-11-05", Seances: []altegio.Slot{slot("2025-11-05", "10:00")}},
	}
	res, err := newTestService(src).Check(context.Background(), query("2025-10-20", "2025-10-22"))
	require.NoError(t, err)

	assert.Equal(t, SourceSeances, res.Source)
	assert.Empty(t, res.AvailableDates)
	assert.NotNil(t, res.AvailableDates)
	assert.Empty(t, src.calls)
}

func TestCheck_NearestSeanceBeforeRange(t *testing.T) {
	src := &stubSource{
		seances: &altegio.Seances{SeanceDate: "2025-10-01"},
		days: map[string][]altegio.Slot{
			"2025-10-21": {slot("2025-10-21", "10:00")},
		},
	}
	res, err := newTestService(src).Check(context.Background(), query("2025-10-20", "2025-10-21"))
	require.NoError(t, err)

	assert.Equal(t, SourceBookTimes, res.Source)
	assert.Len(t, src.calls, 2)
}

func TestCheck_DedupesAndFiltersOutOfRange(t *testing.T) {
	src := &stubSource{
		days: map[string][]altegio.Slot{
			"2025-10-20": {
				slot("2025-10-20", "10:00"),
				slot("2025-10-20", "10:00"),
				slot("2025-10-25", "10:00"),
				{Time: "15:00"},
			},
		},
	}
	res, err := newTestService(src).Check(context.Background(), query("2025-10-20", "2025-10-20"))
	require.NoError(t, err)

	require.Len(t, res.SlotsByDate["2025-10-20"], 2)
	assert.Equal(t, "10:00", res.SlotsByDate["2025-10-20"][0].Time)
	assert.Equal(t, "15:00", res.SlotsByDate["2025-10-20"][1].Time)
	assert.NotContains(t, res.SlotsByDate, "2025-10-25")
}

func TestCheck_PartialFailureRecordsFailedDates(t *testing.T) {
	src := &stubSource{
		days:   map[string][]altegio.Slot{"2025-10-20": {slot("2025-10-20", "10:00")}},
		dayErr: map[string]error{"2025-10-21": &altegio.APIError{StatusCode: 500, Body: "oops"}},
	}
	res, err := newTestService(src).Check(context.Background(), query("2025-10-20", "2025-10-21"))
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-10-21"}, res.FailedDates)
	assert.Equal(t, []string{"2025-10-20"}, res.AvailableDates)
}

func TestCheck_AllDaysFailedReturnsError(t *testing.T) {
	apiErr := &altegio.APIError{StatusCode: 503, Body: "down"}
	src := &stubSource{
		dayErr: map[string]error{"2025-10-20": apiErr, "2025-10-21": apiErr},
	}
	_, err := newTestService(src).Check(context.Background(), query("2025-10-20", "2025-10-21"))

	var got *altegio.APIError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 503, got.StatusCode)
}

func TestCheck_RespectsConcurrencyLimit(t *testing.T) {
	src := &stubSource{delay: 10 * time.Millisecond}
	_, err := newTestService(src).Check(context.Background(), query("2025-10-01", "2025-10-10"))
	require.NoError(t, err)

	assert.Len(t, src.calls, 10)
	assert.LessOrEqual(t, atomic.LoadInt32(&src.maxInFlight), int32(2))
}

func TestCheck_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &stubSource{seancesErr: context.Canceled}
	_, err := newTestService(src).Check(ctx, query("2025-10-20", "2025-10-21"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheck_InvalidRanges(t *testing.T) {
	svc := newTestService(&stubSource{})
	cases := map[string]Query{
		"bad start":   query("20-10-2025", "2025-10-21"),
		"end first":   query("2025-10-21", "2025-10-20"),
		"too long":    query("2025-01-01", "2025-03-01"),
		"no service":  {StartDate: "2025-10-20", EndDate: "2025-10-21"},
		"unknown dur": {Duration: 45, StartDate: "2025-10-20", EndDate: "2025-10-21"},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Check(context.Background(), q)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestResolve_DurationMapsToService(t *testing.T) {
	svc := NewService(&stubSource{}, Config{CompanyID: "1", StaffID: "2", ServiceMap: altegio.DefaultServiceMap}, nil)
	q, _, _, err := svc.Resolve(Query{Duration: 90, StartDate: "2025-10-20", EndDate: "2025-10-20"})
	require.NoError(t, err)
	assert.Equal(t, "12200653", q.ServiceID)
}
