package analytics

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"agentlinker/internal/bookings"
	"agentlinker/internal/leads"
	"agentlinker/internal/timeframe"
)

const (
	TopListingsLimit  = 5
	RecentEventsLimit = 20
	DirectSource      = "direct"
)

type Metrics struct {
	PageViews             int    `json:"pageViews"`
	LinkClicks            int    `json:"linkClicks"`
	ListingViews          int    `json:"listingViews"`
	BookingClicks         int    `json:"bookingClicks"`
	LeadForms             int    `json:"leadForms"`
	TotalLeads            int    `json:"totalLeads"`
	TotalBookings         int    `json:"totalBookings"`
	ConversionRate        string `json:"conversionRate"`
	BookingConversionRate string `json:"bookingConversionRate"`
}

type DailyTrend struct {
	Date     string `json:"date"`
	Views    int    `json:"views"`
	Leads    int    `json:"leads"`
	Bookings int    `json:"bookings"`
}

type ListingPerformance struct {
	ListingID uint `json:"listing_id"`
	Views     int  `json:"views"`
	Leads     int  `json:"leads"`
	Bookings  int  `json:"bookings"`
}

// Report is the dashboard payload for one agent and window. It is rebuilt on every request.
type Report struct {
	Metrics        Metrics              `json:"metrics"`
	TrafficSources map[string]int       `json:"trafficSources"`
	DailyTrends    []DailyTrend         `json:"dailyTrends"`
	TopListings    []ListingPerformance `json:"topListings"`
	RecentEvents   []Event              `json:"recentEvents"`
}

// BuildReport tabulates already-fetched records. Events are expected newest first.
// Records dated outside the window's daily buckets are left out of the trend table.
func BuildReport(window timeframe.Window, events []Event, leadRows []leads.Lead, bookingRows []bookings.Booking) *Report {
	report := &Report{
		TrafficSources: make(map[string]int),
		TopListings:    []ListingPerformance{},
		RecentEvents:   []Event{},
	}

	keys := window.DailyKeys()
	report.DailyTrends = make([]DailyTrend, len(keys))
	bucket := make(map[string]int, len(keys))
	for i, key := range keys {
		report.DailyTrends[i] = DailyTrend{Date: key}
		bucket[key] = i
	}

	var ranking []*ListingPerformance
	byListing := make(map[uint]*ListingPerformance)

	for _, e := range events {
		switch e.EventType {
		case EventPageView:
			report.Metrics.PageViews++
			if i, ok := bucket[timeframe.DayKey(e.CreatedAt)]; ok {
				report.DailyTrends[i].Views++
			}
		case EventLinkClick:
			report.Metrics.LinkClicks++
		case EventListingView:
			report.Metrics.ListingViews++
			if e.ListingID != nil {
				perf, ok := byListing[*e.ListingID]
				if !ok {
					perf = &ListingPerformance{ListingID: *e.ListingID}
					byListing[*e.ListingID] = perf
					ranking = append(ranking, perf)
				}
				perf.Views++
			}
		case EventBookingClick:
			report.Metrics.BookingClicks++
		case EventLeadForm:
			report.Metrics.LeadForms++
		}

		report.TrafficSources[ResolveSource(e)]++
	}

	for _, l := range leadRows {
		report.Metrics.TotalLeads++
		if i, ok := bucket[timeframe.DayKey(l.CreatedAt)]; ok {
			report.DailyTrends[i].Leads++
		}
		if l.ListingID != nil {
			if perf, ok := byListing[*l.ListingID]; ok {
				perf.Leads++
			}
		}
	}

	for _, b := range bookingRows {
		report.Metrics.TotalBookings++
		if i, ok := bucket[timeframe.DayKey(b.CreatedAt)]; ok {
			report.DailyTrends[i].Bookings++
		}
		if b.ListingID != nil {
			if perf, ok := byListing[*b.ListingID]; ok {
				perf.Bookings++
			}
		}
	}

	report.Metrics.ConversionRate = Rate(report.Metrics.TotalLeads, report.Metrics.PageViews)
	report.Metrics.BookingConversionRate = Rate(report.Metrics.TotalBookings, report.Metrics.TotalLeads)

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Views > ranking[j].Views
	})
	for i, perf := range ranking {
		if i == TopListingsLimit {
			break
		}
		report.TopListings = append(report.TopListings, *perf)
	}

	if len(events) > RecentEventsLimit {
		report.RecentEvents = append(report.RecentEvents, events[:RecentEventsLimit]...)
	} else {
		report.RecentEvents = append(report.RecentEvents, events...)
	}

	return report
}

// Rate returns part/whole as a percentage with one decimal place, "0.0" when whole is zero.
func Rate(part, whole int) string {
	if whole == 0 {
		return "0.0"
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		StringFixed(1)
}

// ResolveSource attributes an event to a traffic source: utm_source verbatim,
// else the referrer's hostname, else "direct".
func ResolveSource(e Event) string {
	if v, ok := e.Metadata["utm_source"]; ok && v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	if host := referrerHost(e.Referrer); host != "" {
		return host
	}
	return DirectSource
}

func referrerHost(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}
	if !strings.Contains(referrer, "://") {
		referrer = "https://" + referrer
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
