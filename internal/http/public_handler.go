package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"agentlinker/internal/agents"
	"agentlinker/internal/bookings"
	"agentlinker/internal/leads"
	"agentlinker/internal/listings"
	"agentlinker/internal/locations"
	"agentlinker/internal/notify"
	"agentlinker/internal/tiers"
)

type publicLeadRequest struct {
	ListingID *uint  `json:"listing_id"`
	Name      string `json:"name" validate:"required,max=120"`
	Email     string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone     string `json:"phone" validate:"required_without=Email,omitempty,max=32"`
	Message   string `json:"message" validate:"max=2000"`
	Source    string `json:"source" validate:"max=64"`
}

type publicBookingRequest struct {
	ListingID   *uint     `json:"listing_id"`
	Name        string    `json:"name" validate:"required,max=120"`
	Email       string    `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone       string    `json:"phone" validate:"required_without=Email,omitempty,max=32"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Notes       string    `json:"notes" validate:"max=2000"`
}

func publicAgent(ctx *cartridge.Context) (*agents.Agent, error) {
	return agents.FindByUsername(ctx.DB(), ctx.Params("username"))
}

// ownedListing reports whether listingID, when given, belongs to the agent.
func ownedListing(ctx *cartridge.Context, agentID uint, listingID *uint) (*listings.Listing, bool) {
	if listingID == nil {
		return nil, true
	}
	listing, err := listings.Get(ctx.DB(), agentID, *listingID)
	if err != nil {
		return nil, false
	}
	return listing, true
}

// PublicProfileAction renders the data behind an agent's link-in-bio page.
func PublicProfileAction(ctx *cartridge.Context) error {
	agent, err := publicAgent(ctx)
	if err != nil {
		if errors.Is(err, agents.ErrAgentNotFound) {
			return notFound(ctx, "Agent")
		}
		ctx.Logger.Error("Failed to load public profile", slog.Any("error", err))
		return internalError(ctx)
	}

	active, err := listings.ListActive(ctx.DB(), agent.ID)
	if err != nil {
		ctx.Logger.Error("Failed to load listings", slog.Uint64("agent_id", uint64(agent.ID)), slog.Any("error", err))
		return internalError(ctx)
	}

	tier := agent.CurrentTier()
	brandColor := ""
	if tiers.Allows(tier, tiers.FeatureCustomBranding) {
		brandColor = agent.BrandColor
	}

	return ctx.JSON(fiber.Map{
		"agent": fiber.Map{
			"id":           agent.ID,
			"username":     agent.Username,
			"display_name": agent.DisplayName,
			"bio":          agent.Bio,
			"phone":        agent.Phone,
			"avatar_url":   agent.AvatarURL,
			"brand_color":  brandColor,
		},
		"location":          locations.Format(agent.City, agent.Region, agent.CountryCode),
		"responseTimeLabel": agents.ResponseTimeLabel(agent.ResponseTimeMinutes),
		"showBranding":      !tiers.Allows(tier, tiers.FeatureRemoveBranding),
		"bookingsEnabled":   tiers.Allows(tier, tiers.FeatureBookings),
		"listings":          active,
	})
}

// PublicLeadCreateAction stores a contact-form submission and notifies the agent.
func PublicLeadCreateAction(notifier *notify.Notifier) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		agent, err := publicAgent(ctx)
		if err != nil {
			if errors.Is(err, agents.ErrAgentNotFound) {
				return notFound(ctx, "Agent")
			}
			ctx.Logger.Error("Failed to load agent", slog.Any("error", err))
			return internalError(ctx)
		}

		var req publicLeadRequest
		if ok, err := parseBody(ctx, &req); !ok {
			return err
		}

		listing, ok := ownedListing(ctx, agent.ID, req.ListingID)
		if !ok {
			return notFound(ctx, "Listing")
		}

		lead, err := leads.Create(ctx.DB(), agent.ID, agent.CurrentTier(), leads.Input{
			ListingID: req.ListingID,
			Name:      req.Name,
			Email:     req.Email,
			Phone:     req.Phone,
			Message:   req.Message,
			Source:    req.Source,
		}, time.Now())
		if err != nil {
			if errors.Is(err, leads.ErrLeadLimitReached) {
				return paymentRequired(ctx, err)
			}
			ctx.Logger.Error("Failed to create lead", slog.Uint64("agent_id", uint64(agent.ID)), slog.Any("error", err))
			return internalError(ctx)
		}

		if tiers.Allows(agent.CurrentTier(), tiers.FeatureNotifications) {
			title := ""
			if listing != nil {
				title = listing.Title
			}
			notifier.Dispatch(notify.LeadMessage(agent, lead, title))
		}

		return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"lead_id": lead.ID,
		})
	}
}

// PublicBookingCreateAction stores a showing request and notifies the agent.
func PublicBookingCreateAction(notifier *notify.Notifier) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		agent, err := publicAgent(ctx)
		if err != nil {
			if errors.Is(err, agents.ErrAgentNotFound) {
				return notFound(ctx, "Agent")
			}
			ctx.Logger.Error("Failed to load agent", slog.Any("error", err))
			return internalError(ctx)
		}

		var req publicBookingRequest
		if ok, err := parseBody(ctx, &req); !ok {
			return err
		}

		if _, ok := ownedListing(ctx, agent.ID, req.ListingID); !ok {
			return notFound(ctx, "Listing")
		}

		booking, err := bookings.Create(ctx.DB(), agent.ID, agent.CurrentTier(), bookings.Input{
			ListingID:   req.ListingID,
			Name:        req.Name,
			Email:       req.Email,
			Phone:       req.Phone,
			ScheduledAt: req.ScheduledAt,
			Notes:       req.Notes,
		}, time.Now())
		if err != nil {
			switch {
			case errors.Is(err, bookings.ErrBookingsNotIncluded):
				return paymentRequired(ctx, err)
			case errors.Is(err, bookings.ErrInvalidSchedule):
				return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error":  err.Error(),
					"fields": []string{"scheduled_at"},
				})
			}
			ctx.Logger.Error("Failed to create booking", slog.Uint64("agent_id", uint64(agent.ID)), slog.Any("error", err))
			return internalError(ctx)
		}

		if tiers.Allows(agent.CurrentTier(), tiers.FeatureNotifications) {
			notifier.Dispatch(notify.BookingMessage(agent, booking))
		}

		return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":           true,
			"booking_id":        booking.ID,
			"confirmation_code": booking.ConfirmationCode,
			"status":            booking.Status,
		})
	}
}

// PublicBookingStatusAction looks a booking up by its confirmation code.
func PublicBookingStatusAction(ctx *cartridge.Context) error {
	booking, err := bookings.FindByConfirmationCode(ctx.DB(), ctx.Params("code"))
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			return notFound(ctx, "Booking")
		}
		ctx.Logger.Error("Failed to load booking", slog.Any("error", err))
		return internalError(ctx)
	}
	return ctx.JSON(fiber.Map{
		"confirmation_code": booking.ConfirmationCode,
		"status":            booking.Status,
		"scheduled_at":      booking.ScheduledAt,
	})
}
