package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"agentlinker/internal/bookings"
	"agentlinker/internal/leads"
	"agentlinker/internal/metrics"
	"agentlinker/internal/pkg/async"
	"agentlinker/internal/timeframe"
)

// ErrEventsUnavailable is returned when the events fetch fails. Lead and booking
// fetch failures only degrade the report.
var ErrEventsUnavailable = errors.New("analytics events unavailable")

const (
	fetchEvents   = "events"
	fetchLeads    = "leads"
	fetchBookings = "bookings"
)

// Store fetches the records a report is built from.
type Store interface {
	EventsSince(ctx context.Context, agentID uint, since time.Time) ([]Event, error)
	LeadsSince(ctx context.Context, agentID uint, since time.Time) ([]leads.Lead, error)
	BookingsSince(ctx context.Context, agentID uint, since time.Time) ([]bookings.Booking, error)
}

// DBStore reads report inputs from the application database.
type DBStore struct {
	DB *gorm.DB
}

func (s DBStore) EventsSince(ctx context.Context, agentID uint, since time.Time) ([]Event, error) {
	return ListEventsSince(ctx, s.DB, agentID, since)
}

func (s DBStore) LeadsSince(ctx context.Context, agentID uint, since time.Time) ([]leads.Lead, error) {
	return leads.ListSince(s.DB.WithContext(ctx), agentID, since)
}

func (s DBStore) BookingsSince(ctx context.Context, agentID uint, since time.Time) ([]bookings.Booking, error) {
	return bookings.ListSince(s.DB.WithContext(ctx), agentID, since)
}

type Aggregator struct {
	Store  Store
	Logger *slog.Logger
	Clock  timeframe.TimeProvider
	pool   *async.Pool
}

func NewAggregator(store Store, logger *slog.Logger, clock timeframe.TimeProvider, workers int) *Aggregator {
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	return &Aggregator{
		Store:  store,
		Logger: logger,
		Clock:  clock,
		pool:   async.NewPool(workers),
	}
}

// Generate builds the report for agentID over the trailing days.
func (a *Aggregator) Generate(ctx context.Context, agentID uint, days int) (*Report, error) {
	started := time.Now()
	defer func() {
		metrics.ReportDuration.Observe(time.Since(started).Seconds())
	}()

	window, err := timeframe.TrailingDays(a.Clock.Now(time.UTC), days)
	if err != nil {
		return nil, err
	}

	results := a.pool.Execute(ctx, []async.Task{
		{Name: fetchEvents, Execute: func(ctx context.Context) (interface{}, error) {
			return a.Store.EventsSince(ctx, agentID, window.From)
		}},
		{Name: fetchLeads, Execute: func(ctx context.Context) (interface{}, error) {
			return a.Store.LeadsSince(ctx, agentID, window.From)
		}},
		{Name: fetchBookings, Execute: func(ctx context.Context) (interface{}, error) {
			return a.Store.BookingsSince(ctx, agentID, window.From)
		}},
	})

	eventsResult := results[fetchEvents]
	if eventsResult.Err != nil {
		metrics.ReportFetchFailures.WithLabelValues(fetchEvents).Inc()
		return nil, fmt.Errorf("%w: %v", ErrEventsUnavailable, eventsResult.Err)
	}
	events, _ := eventsResult.Data.([]Event)

	var leadRows []leads.Lead
	if r := results[fetchLeads]; r.Err != nil {
		a.degraded(fetchLeads, agentID, r.Err)
	} else {
		leadRows, _ = r.Data.([]leads.Lead)
	}

	var bookingRows []bookings.Booking
	if r := results[fetchBookings]; r.Err != nil {
		a.degraded(fetchBookings, agentID, r.Err)
	} else {
		bookingRows, _ = r.Data.([]bookings.Booking)
	}

	return BuildReport(window, events, leadRows, bookingRows), nil
}

func (a *Aggregator) degraded(fetch string, agentID uint, err error) {
	metrics.ReportFetchFailures.WithLabelValues(fetch).Inc()
	a.Logger.Warn("Analytics fetch failed, continuing with empty set",
		slog.String("fetch", fetch),
		slog.Uint64("agent_id", uint64(agentID)),
		slog.Any("error", err))
}
