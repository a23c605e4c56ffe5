package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"agentlinker/internal/analytics"
	"agentlinker/internal/config"
	"agentlinker/internal/http/middleware"
)

type eventRequest struct {
	UserID    uint                   `json:"user_id" validate:"required"`
	EventType string                 `json:"event_type" validate:"required,oneof=page_view link_click listing_view booking_click lead_form view"`
	ListingID *uint                  `json:"listing_id"`
	LeadID    *uint                  `json:"lead_id"`
	BookingID *uint                  `json:"booking_id"`
	Metadata  map[string]interface{} `json:"metadata"`
	IPAddress string                 `json:"ip_address" validate:"max=64"`
	UserAgent string                 `json:"user_agent" validate:"max=512"`
	Referrer  string                 `json:"referrer" validate:"max=2048"`
}

// AnalyticsReportAction returns the performance report for ?days= (default 30).
func AnalyticsReportAction(aggregator *analytics.Aggregator) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		agentID := middleware.CurrentAgentID(ctx.Ctx)
		if agentID == 0 {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		days := analytics.ParseDays(ctx.Query("days"), config.GetConfig().AnalyticsMaxDays)

		report, err := aggregator.Generate(ctx.Context(), agentID, days)
		if err != nil {
			ctx.Logger.Error("Failed to build analytics report",
				slog.Uint64("agent_id", uint64(agentID)),
				slog.Int("days", days),
				slog.Any("error", err))
			if errors.Is(err, analytics.ErrEventsUnavailable) {
				return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to fetch analytics",
				})
			}
			return internalError(ctx)
		}

		return ctx.JSON(report)
	}
}

// AnalyticsEventCreateAction records an event for the authenticated agent.
func AnalyticsEventCreateAction(ctx *cartridge.Context) error {
	agentID := middleware.CurrentAgentID(ctx.Ctx)
	if agentID == 0 {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req eventRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}

	if req.UserID != agentID {
		ctx.Logger.Warn("Rejected event for another agent",
			slog.Uint64("agent_id", uint64(agentID)),
			slog.Uint64("user_id", uint64(req.UserID)))
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "user_id does not match the authenticated agent",
		})
	}

	ip := req.IPAddress
	if ip == "" {
		ip = ctx.IP()
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = ctx.Get("User-Agent")
	}

	event, err := analytics.RecordEvent(ctx.DB(), ctx.Logger, analytics.EventInput{
		AgentID:   agentID,
		EventType: req.EventType,
		ListingID: req.ListingID,
		LeadID:    req.LeadID,
		BookingID: req.BookingID,
		Metadata:  req.Metadata,
		IPAddress: ip,
		UserAgent: userAgent,
		Referrer:  req.Referrer,
	}, time.Now())
	if err != nil {
		ctx.Logger.Error("Failed to record event", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record event",
		})
	}

	return ctx.Status(fiber.StatusCreated).JSON(event)
}
