package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentlinker/internal/analytics"
	"agentlinker/internal/bookings"
	"agentlinker/internal/leads"
	"agentlinker/internal/testsupport"
	"agentlinker/internal/timeframe"
)

type stubStore struct {
	events      []analytics.Event
	leads       []leads.Lead
	bookings    []bookings.Booking
	eventsErr   error
	leadsErr    error
	bookingsErr error
	since       time.Time
	agentID     uint
}

func (s *stubStore) EventsSince(ctx context.Context, agentID uint, since time.Time) ([]analytics.Event, error) {
	s.since = since
	s.agentID = agentID
	return s.events, s.eventsErr
}

func (s *stubStore) LeadsSince(ctx context.Context, agentID uint, since time.Time) ([]leads.Lead, error) {
	return s.leads, s.leadsErr
}

func (s *stubStore) BookingsSince(ctx context.Context, agentID uint, since time.Time) ([]bookings.Booking, error) {
	return s.bookings, s.bookingsErr
}

func newAggregator(store analytics.Store) *analytics.Aggregator {
	return analytics.NewAggregator(store, testsupport.GetLogger(), &timeframe.FixedTimeProvider{At: reportNow}, 3)
}

func TestAggregatorGenerate(t *testing.T) {
	t.Run("builds the report from all three fetches", func(t *testing.T) {
		store := &stubStore{
			events:   []analytics.Event{event(analytics.EventPageView, reportNow), event(analytics.EventPageView, reportNow)},
			leads:    []leads.Lead{{CreatedAt: reportNow}},
			bookings: []bookings.Booking{{CreatedAt: reportNow}},
		}

		report, err := newAggregator(store).Generate(context.Background(), 42, 7)
		require.NoError(t, err)

		assert.Equal(t, uint(42), store.agentID)
		assert.Equal(t, reportNow.AddDate(0, 0, -7), store.since)
		assert.Equal(t, 2, report.Metrics.PageViews)
		assert.Equal(t, 1, report.Metrics.TotalLeads)
		assert.Equal(t, 1, report.Metrics.TotalBookings)
		assert.Equal(t, "50.0", report.Metrics.ConversionRate)
		assert.Equal(t, "100.0", report.Metrics.BookingConversionRate)
		assert.Len(t, report.DailyTrends, 7)
	})

	t.Run("events failure fails the report", func(t *testing.T) {
		store := &stubStore{eventsErr: errors.New("database is locked")}

		report, err := newAggregator(store).Generate(context.Background(), 1, 30)
		require.Error(t, err)
		assert.ErrorIs(t, err, analytics.ErrEventsUnavailable)
		assert.Nil(t, report)
	})

	t.Run("leads failure degrades to an empty set", func(t *testing.T) {
		store := &stubStore{
			events:   []analytics.Event{event(analytics.EventPageView, reportNow)},
			leadsErr: errors.New("timeout"),
			bookings: []bookings.Booking{{CreatedAt: reportNow}},
		}

		report, err := newAggregator(store).Generate(context.Background(), 1, 30)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Metrics.TotalLeads)
		assert.Equal(t, 1, report.Metrics.TotalBookings)
		assert.Equal(t, "0.0", report.Metrics.ConversionRate)
	})

	t.Run("bookings failure degrades to an empty set", func(t *testing.T) {
		store := &stubStore{
			events:      []analytics.Event{event(analytics.EventPageView, reportNow)},
			leads:       []leads.Lead{{CreatedAt: reportNow}},
			bookingsErr: errors.New("timeout"),
		}

		report, err := newAggregator(store).Generate(context.Background(), 1, 30)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Metrics.TotalLeads)
		assert.Equal(t, 0, report.Metrics.TotalBookings)
		assert.Equal(t, "100.0", report.Metrics.ConversionRate)
	})

	t.Run("rejects non-positive days", func(t *testing.T) {
		_, err := newAggregator(&stubStore{}).Generate(context.Background(), 1, 0)
		require.Error(t, err)
	})
}

func TestAggregatorWithDatabase(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	logger := testsupport.GetLogger()

	agent := testsupport.CreateTestAgent(t, db, "agg@example.com", "aggagent")
	other := testsupport.CreateTestAgent(t, db, "other@example.com", "otheragent")

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := analytics.RecordEvent(db, logger, analytics.EventInput{AgentID: agent.ID, EventType: "page_view"}, now.Add(-time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	_, err := analytics.RecordEvent(db, logger, analytics.EventInput{AgentID: agent.ID, EventType: "page_view"}, now.AddDate(0, 0, -40))
	require.NoError(t, err)
	_, err = analytics.RecordEvent(db, logger, analytics.EventInput{AgentID: other.ID, EventType: "page_view"}, now)
	require.NoError(t, err)

	_, err = leads.Create(db, agent.ID, agent.CurrentTier(), leads.Input{Name: "Buyer", Email: "buyer@example.com"}, now)
	require.NoError(t, err)

	aggregator := analytics.NewAggregator(analytics.DBStore{DB: db}, logger, nil, 3)
	report, err := aggregator.Generate(context.Background(), agent.ID, 30)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Metrics.PageViews)
	assert.Equal(t, 1, report.Metrics.TotalLeads)
	assert.Equal(t, "33.3", report.Metrics.ConversionRate)
	assert.Len(t, report.RecentEvents, 3)
	for _, e := range report.RecentEvents {
		assert.Equal(t, agent.ID, e.AgentID)
	}
	assert.True(t, !report.RecentEvents[0].CreatedAt.Before(report.RecentEvents[1].CreatedAt))
}
