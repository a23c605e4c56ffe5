package analytics_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"agentlinker/internal/analytics"
	"agentlinker/internal/bookings"
	"agentlinker/internal/leads"
	"agentlinker/internal/timeframe"
)

var reportNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func window(t *testing.T, days int) timeframe.Window {
	t.Helper()
	w, err := timeframe.TrailingDays(reportNow, days)
	require.NoError(t, err)
	return w
}

func uintPtr(v uint) *uint { return &v }

func event(eventType analytics.EventType, at time.Time) analytics.Event {
	return analytics.Event{AgentID: 1, EventType: eventType, CreatedAt: at}
}

func TestBuildReportExample(t *testing.T) {
	day0 := reportNow.AddDate(0, 0, -1)
	day1 := reportNow

	var events []analytics.Event
	for i := 0; i < 5; i++ {
		events = append(events, event(analytics.EventPageView, day1))
	}
	for i := 0; i < 10; i++ {
		events = append(events, event(analytics.EventPageView, day0))
	}
	leadRows := []leads.Lead{{CreatedAt: day0}, {CreatedAt: day0}}

	report := analytics.BuildReport(window(t, 2), events, leadRows, nil)

	assert.Equal(t, 15, report.Metrics.PageViews)
	assert.Equal(t, 2, report.Metrics.TotalLeads)
	assert.Equal(t, "13.3", report.Metrics.ConversionRate)
	assert.Equal(t, "0.0", report.Metrics.BookingConversionRate)
	assert.Equal(t, []analytics.DailyTrend{
		{Date: "2024-03-14", Views: 10, Leads: 2, Bookings: 0},
		{Date: "2024-03-15", Views: 5, Leads: 0, Bookings: 0},
	}, report.DailyTrends)
}

func TestBuildReportMetrics(t *testing.T) {
	events := []analytics.Event{
		event(analytics.EventPageView, reportNow),
		event(analytics.EventPageView, reportNow),
		event(analytics.EventLinkClick, reportNow),
		event(analytics.EventListingView, reportNow),
		event(analytics.EventBookingClick, reportNow),
		event(analytics.EventLeadForm, reportNow),
		event(analytics.EventLeadForm, reportNow),
		event(analytics.EventView, reportNow),
	}
	leadRows := []leads.Lead{{CreatedAt: reportNow}}
	bookingRows := []bookings.Booking{{CreatedAt: reportNow}, {CreatedAt: reportNow}, {CreatedAt: reportNow}}

	report := analytics.BuildReport(window(t, 7), events, leadRows, bookingRows)

	assert.Equal(t, analytics.Metrics{
		PageViews:             2,
		LinkClicks:            1,
		ListingViews:          1,
		BookingClicks:         1,
		LeadForms:             2,
		TotalLeads:            1,
		TotalBookings:         3,
		ConversionRate:        "50.0",
		BookingConversionRate: "300.0",
	}, report.Metrics)
}

func TestBuildReportZeroDenominators(t *testing.T) {
	t.Run("no page views", func(t *testing.T) {
		report := analytics.BuildReport(window(t, 30), nil, []leads.Lead{{CreatedAt: reportNow}}, nil)
		assert.Equal(t, "0.0", report.Metrics.ConversionRate)
	})

	t.Run("no leads", func(t *testing.T) {
		report := analytics.BuildReport(window(t, 30), nil, nil, []bookings.Booking{{CreatedAt: reportNow}})
		assert.Equal(t, "0.0", report.Metrics.BookingConversionRate)
		assert.Equal(t, 1, report.Metrics.TotalBookings)
	})

	t.Run("empty inputs", func(t *testing.T) {
		report := analytics.BuildReport(window(t, 30), nil, nil, nil)
		assert.Equal(t, "0.0", report.Metrics.ConversionRate)
		assert.NotNil(t, report.TrafficSources)
		assert.Empty(t, report.TrafficSources)
		assert.NotNil(t, report.TopListings)
		assert.NotNil(t, report.RecentEvents)
		assert.Len(t, report.DailyTrends, 30)
	})
}

func TestBuildReportDailyTrends(t *testing.T) {
	for _, days := range []int{1, 2, 7, 30, 90, 365} {
		t.Run(fmt.Sprintf("%d days", days), func(t *testing.T) {
			report := analytics.BuildReport(window(t, days), nil, nil, nil)
			require.Len(t, report.DailyTrends, days)

			assert.Equal(t, "2024-03-15", report.DailyTrends[days-1].Date)
			for i := 1; i < len(report.DailyTrends); i++ {
				prev, err := time.Parse(timeframe.DayLayout, report.DailyTrends[i-1].Date)
				require.NoError(t, err)
				cur, err := time.Parse(timeframe.DayLayout, report.DailyTrends[i].Date)
				require.NoError(t, err)
				assert.Equal(t, 24*time.Hour, cur.Sub(prev))
			}
		})
	}

	t.Run("records outside the buckets are dropped", func(t *testing.T) {
		events := []analytics.Event{
			event(analytics.EventPageView, reportNow.Add(48*time.Hour)),
			event(analytics.EventPageView, reportNow.AddDate(0, 0, -10)),
			event(analytics.EventPageView, reportNow),
		}
		leadRows := []leads.Lead{{CreatedAt: reportNow.AddDate(0, 0, -10)}}

		report := analytics.BuildReport(window(t, 3), events, leadRows, nil)

		require.Len(t, report.DailyTrends, 3)
		total := 0
		leadTotal := 0
		for _, d := range report.DailyTrends {
			total += d.Views
			leadTotal += d.Leads
		}
		assert.Equal(t, 1, total)
		assert.Equal(t, 0, leadTotal)
		assert.Equal(t, 3, report.Metrics.PageViews)
		assert.Equal(t, 1, report.Metrics.TotalLeads)
	})

	t.Run("buckets use UTC days", func(t *testing.T) {
		loc := time.FixedZone("UTC-5", -5*60*60)
		lateEvening := time.Date(2024, 3, 14, 21, 0, 0, 0, loc)

		report := analytics.BuildReport(window(t, 2), []analytics.Event{event(analytics.EventPageView, lateEvening)}, nil, nil)
		assert.Equal(t, 0, report.DailyTrends[0].Views)
		assert.Equal(t, 1, report.DailyTrends[1].Views)
	})
}

func TestResolveSource(t *testing.T) {
	tests := []struct {
		name     string
		metadata datatypes.JSONMap
		referrer string
		expected string
	}{
		{"utm source wins", datatypes.JSONMap{"utm_source": "Newsletter"}, "https://google.com/search", "Newsletter"},
		{"referrer hostname", nil, "https://www.google.com/search?q=homes", "www.google.com"},
		{"referrer with port", nil, "http://localhost:3000/page", "localhost"},
		{"referrer without scheme", nil, "facebook.com/share", "facebook.com"},
		{"empty utm falls through", datatypes.JSONMap{"utm_source": ""}, "https://zillow.com", "zillow.com"},
		{"source tag is not utm", datatypes.JSONMap{"source": "qr"}, "", "direct"},
		{"no metadata no referrer", nil, "", "direct"},
		{"unparsable referrer", nil, "http://[::1", "direct"},
		{"non-string utm kept verbatim", datatypes.JSONMap{"utm_source": float64(42)}, "", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := analytics.Event{Metadata: tt.metadata, Referrer: tt.referrer}
			assert.Equal(t, tt.expected, analytics.ResolveSource(e))
		})
	}
}

func TestBuildReportTrafficSources(t *testing.T) {
	events := []analytics.Event{
		{EventType: analytics.EventPageView, CreatedAt: reportNow, Metadata: datatypes.JSONMap{"utm_source": "instagram"}},
		{EventType: analytics.EventLinkClick, CreatedAt: reportNow, Metadata: datatypes.JSONMap{"utm_source": "instagram"}},
		{EventType: analytics.EventPageView, CreatedAt: reportNow, Referrer: "https://www.google.com/"},
		{EventType: analytics.EventPageView, CreatedAt: reportNow},
	}

	report := analytics.BuildReport(window(t, 30), events, nil, nil)
	assert.Equal(t, map[string]int{"instagram": 2, "www.google.com": 1, "direct": 1}, report.TrafficSources)
}

func TestBuildReportTopListings(t *testing.T) {
	views := func(listingID uint, n int) []analytics.Event {
		out := make([]analytics.Event, n)
		for i := range out {
			out[i] = analytics.Event{EventType: analytics.EventListingView, ListingID: uintPtr(listingID), CreatedAt: reportNow}
		}
		return out
	}

	t.Run("ranks by views and keeps the top five", func(t *testing.T) {
		var events []analytics.Event
		events = append(events, views(1, 2)...)
		events = append(events, views(2, 7)...)
		events = append(events, views(3, 1)...)
		events = append(events, views(4, 4)...)
		events = append(events, views(5, 9)...)
		events = append(events, views(6, 3)...)

		report := analytics.BuildReport(window(t, 30), events, nil, nil)

		require.Len(t, report.TopListings, analytics.TopListingsLimit)
		var ids []uint
		for _, p := range report.TopListings {
			ids = append(ids, p.ListingID)
		}
		assert.Equal(t, []uint{5, 2, 4, 6, 1}, ids)
	})

	t.Run("ties keep fetch order", func(t *testing.T) {
		var events []analytics.Event
		events = append(events, views(9, 2)...)
		events = append(events, views(3, 2)...)
		events = append(events, views(7, 2)...)

		report := analytics.BuildReport(window(t, 30), events, nil, nil)
		require.Len(t, report.TopListings, 3)
		assert.Equal(t, uint(9), report.TopListings[0].ListingID)
		assert.Equal(t, uint(3), report.TopListings[1].ListingID)
		assert.Equal(t, uint(7), report.TopListings[2].ListingID)
	})

	t.Run("leads and bookings attach only to viewed listings", func(t *testing.T) {
		events := views(1, 3)
		leadRows := []leads.Lead{
			{ListingID: uintPtr(1), CreatedAt: reportNow},
			{ListingID: uintPtr(2), CreatedAt: reportNow},
			{CreatedAt: reportNow},
		}
		bookingRows := []bookings.Booking{
			{ListingID: uintPtr(1), CreatedAt: reportNow},
			{ListingID: uintPtr(2), CreatedAt: reportNow},
		}

		report := analytics.BuildReport(window(t, 30), events, leadRows, bookingRows)

		require.Len(t, report.TopListings, 1)
		assert.Equal(t, analytics.ListingPerformance{ListingID: 1, Views: 3, Leads: 1, Bookings: 1}, report.TopListings[0])
		assert.Equal(t, 3, report.Metrics.TotalLeads)
		assert.Equal(t, 2, report.Metrics.TotalBookings)
	})

	t.Run("listing views without a listing id are counted but not ranked", func(t *testing.T) {
		events := []analytics.Event{{EventType: analytics.EventListingView, CreatedAt: reportNow}}
		report := analytics.BuildReport(window(t, 30), events, nil, nil)
		assert.Equal(t, 1, report.Metrics.ListingViews)
		assert.Empty(t, report.TopListings)
	})
}

func TestBuildReportRecentEvents(t *testing.T) {
	var events []analytics.Event
	for i := 0; i < 25; i++ {
		events = append(events, analytics.Event{ID: uint(100 - i), EventType: analytics.EventView, CreatedAt: reportNow.Add(-time.Duration(i) * time.Minute)})
	}

	report := analytics.BuildReport(window(t, 30), events, nil, nil)
	require.Len(t, report.RecentEvents, analytics.RecentEventsLimit)
	assert.Equal(t, uint(100), report.RecentEvents[0].ID)
	assert.Equal(t, uint(81), report.RecentEvents[19].ID)
}

func TestRate(t *testing.T) {
	assert.Equal(t, "0.0", analytics.Rate(5, 0))
	assert.Equal(t, "0.0", analytics.Rate(0, 10))
	assert.Equal(t, "33.3", analytics.Rate(1, 3))
	assert.Equal(t, "66.7", analytics.Rate(2, 3))
	assert.Equal(t, "100.0", analytics.Rate(4, 4))
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
	}{
		{"", 30},
		{"7", 7},
		{" 14 ", 14},
		{"abc", 30},
		{"7days", 30},
		{"0", 30},
		{"-5", 30},
		{"365", 365},
		{"1000", 365},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, analytics.ParseDays(tt.raw, 365))
		})
	}

	assert.Equal(t, 1000, analytics.ParseDays("1000", 0))
}
