// Package seeder fills a development database with demo agents and a month
// of realistic traffic so the dashboard has something to show.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/shopspring/decimal"

	"agentlinker/internal/agents"
	"agentlinker/internal/analytics"
	"agentlinker/internal/bookings"
	"agentlinker/internal/leads"
	"agentlinker/internal/listings"
	"agentlinker/internal/tiers"
	"agentlinker/internal/timeframe"
)

// DemoPassword is the password of every seeded agent.
const DemoPassword = "demo-password"

// Seeder creates demo data through the same domain functions the API uses.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	EventCount int
	Days       int

	// Clock anchors the seeded window. Defaults to the system clock.
	Clock timeframe.TimeProvider

	rng *rand.Rand
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, eventCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		EventCount: eventCount,
		Days:       30,
		Clock:      &timeframe.DefaultTimeProvider{},
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 42)),
	}
}

type demoAgent struct {
	email       string
	username    string
	displayName string
	city        string
	region      string
	country     string
	tier        tiers.Tier
}

var demoAgents = []demoAgent{
	{"maria@example.com", "maria-homes", "Maria Alvarez", "Austin", "TX", "US", tiers.Pro},
	{"dan@example.com", "dan-sells", "Dan Okafor", "Toronto", "ON", "CA", tiers.Free},
	{"lisbon@example.com", "casa-lisboa", "Ines Duarte", "Lisbon", "", "PT", tiers.Business},
}

var demoListings = []struct {
	title    string
	price    int64
	bedrooms int
	baths    float64
	sqft     int
}{
	{"Sunny craftsman near the park", 489000, 3, 2, 1650},
	{"Downtown loft with skyline views", 615000, 2, 2, 1180},
	{"Quiet cul-de-sac family home", 725000, 4, 3.5, 2600},
	{"Starter condo close to transit", 299000, 1, 1, 720},
}

var sources = []string{"instagram", "facebook", "linkedin", "tiktok", "email", "", ""}

var referrers = []string{
	"https://l.instagram.com/",
	"https://www.facebook.com/",
	"https://www.google.com/search?q=homes",
	"https://lnkd.in/abc",
	"",
}

var userAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Mobile Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
}

// Run seeds every demo agent. Agents that already exist are reused.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Seeding demo data...", slog.Int("eventCount", s.EventCount), slog.Int("days", s.Days))

	perAgent := s.EventCount / len(demoAgents)
	for _, demo := range demoAgents {
		if err := ctx.Err(); err != nil {
			return err
		}
		agent, err := s.ensureAgent(demo)
		if err != nil {
			return fmt.Errorf("failed to seed agent %s: %w", demo.username, err)
		}
		if err := s.seedAgent(ctx, agent, perAgent); err != nil {
			return fmt.Errorf("failed to seed data for %s: %w", demo.username, err)
		}
	}

	s.Logger.Info("Seeding completed", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// SeedAgent seeds traffic for an existing agent identified by username.
func (s *Seeder) SeedAgent(ctx context.Context, username string) error {
	agent, err := agents.FindByUsername(s.DBManager.GetConnection(), username)
	if err != nil {
		if errors.Is(err, agents.ErrAgentNotFound) {
			return fmt.Errorf("agent %s not found", username)
		}
		return fmt.Errorf("failed to find agent: %w", err)
	}
	return s.seedAgent(ctx, agent, s.EventCount)
}

func (s *Seeder) ensureAgent(demo demoAgent) (*agents.Agent, error) {
	db := s.DBManager.GetConnection()

	agent, err := agents.Create(db, agents.CreateInput{
		Email:       demo.email,
		Username:    demo.username,
		Password:    DemoPassword,
		DisplayName: demo.displayName,
		Tier:        demo.tier,
	})
	if errors.Is(err, agents.ErrAgentExists) {
		s.Logger.Info("Reusing existing agent", slog.String("username", demo.username))
		return agents.FindByUsername(db, demo.username)
	}
	if err != nil {
		return nil, err
	}

	minutes := 15 + s.rng.IntN(120)
	return agents.UpdateProfile(db, agent.ID, agents.ProfileUpdate{
		City:                &demo.city,
		Region:              &demo.region,
		CountryCode:         &demo.country,
		ResponseTimeMinutes: &minutes,
	})
}

func (s *Seeder) seedAgent(ctx context.Context, agent *agents.Agent, eventCount int) error {
	db := s.DBManager.GetConnection()
	tier := agent.CurrentTier()
	now := s.Clock.Now(time.UTC)

	var listingIDs []uint
	for _, l := range demoListings {
		listing, err := listings.Create(db, agent.ID, tier, listings.Input{
			Title:      l.title,
			City:       agent.City,
			Price:      decimal.NewFromInt(l.price),
			Bedrooms:   l.bedrooms,
			Bathrooms:  decimal.NewFromFloat(l.baths),
			SquareFeet: l.sqft,
		})
		if errors.Is(err, listings.ErrListingLimitReached) {
			break
		}
		if err != nil {
			return err
		}
		listingIDs = append(listingIDs, listing.ID)
	}

	logger := s.Logger.With(slog.String("username", agent.Username))
	for i := 0; i < eventCount; i++ {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		at := now.Add(-time.Duration(s.rng.Int64N(int64(s.Days) * int64(24*time.Hour))))
		input := analytics.TrackInput{
			AgentID:   agent.ID,
			EventType: string(analytics.EventPageView),
			Source:    sources[s.rng.IntN(len(sources))],
			IPAddress: fmt.Sprintf("203.0.113.%d", s.rng.IntN(254)+1),
			UserAgent: userAgents[s.rng.IntN(len(userAgents))],
			Referrer:  referrers[s.rng.IntN(len(referrers))],
		}

		switch roll := s.rng.IntN(100); {
		case roll < 55:
		case roll < 75:
			input.EventType = string(analytics.EventLinkClick)
		case roll < 95 && len(listingIDs) > 0:
			input.EventType = string(analytics.EventListingView)
			id := listingIDs[s.rng.IntN(len(listingIDs))]
			input.ListingID = &id
		case roll < 98:
			input.EventType = string(analytics.EventLeadForm)
		default:
			input.EventType = string(analytics.EventBookingClick)
		}

		if _, err := analytics.TrackPublic(db, logger, input, at); err != nil {
			return err
		}
	}

	leadCount := eventCount / 40
	for i := 0; i < leadCount; i++ {
		at := now.Add(-time.Duration(s.rng.Int64N(int64(s.Days) * int64(24*time.Hour))))
		in := leads.Input{
			Name:   fmt.Sprintf("Prospect %d", i+1),
			Email:  fmt.Sprintf("prospect%d@example.com", i+1),
			Source: sources[s.rng.IntN(len(sources))],
		}
		if len(listingIDs) > 0 && s.rng.IntN(2) == 0 {
			id := listingIDs[s.rng.IntN(len(listingIDs))]
			in.ListingID = &id
		}
		if _, err := leads.Create(db, agent.ID, tier, in, at); err != nil {
			if errors.Is(err, leads.ErrLeadLimitReached) {
				break
			}
			return err
		}
	}

	if tiers.Allows(tier, tiers.FeatureBookings) {
		for i := 0; i < leadCount/3; i++ {
			at := now.Add(-time.Duration(s.rng.Int64N(int64(s.Days) * int64(24*time.Hour))))
			in := bookings.Input{
				Name:        fmt.Sprintf("Buyer %d", i+1),
				Email:       fmt.Sprintf("buyer%d@example.com", i+1),
				ScheduledAt: at.Add(time.Duration(24+s.rng.IntN(72)) * time.Hour),
			}
			if len(listingIDs) > 0 {
				id := listingIDs[s.rng.IntN(len(listingIDs))]
				in.ListingID = &id
			}
			if _, err := bookings.Create(db, agent.ID, tier, in, at); err != nil {
				return err
			}
		}
	}

	logger.Info("Seeded agent",
		slog.Int("listings", len(listingIDs)),
		slog.Int("events", eventCount),
		slog.Int("leads", leadCount))
	return nil
}
