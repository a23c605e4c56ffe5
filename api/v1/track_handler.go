// Package v1 holds the public beacon endpoint hit by profile pages.
package v1

import (
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"agentlinker/internal/agents"
	"agentlinker/internal/analytics"
	"agentlinker/internal/metrics"
	"agentlinker/internal/pkg/useragent"
)

// TrackParams is the beacon body. Pages send it with navigator.sendBeacon,
// so it may arrive as text/plain.
type TrackParams struct {
	UserID    uint   `json:"user_id"`
	EventType string `json:"event_type"`
	ListingID *uint  `json:"listing_id,omitempty"`
	Source    string `json:"source"`
	Referrer  string `json:"referrer"`
}

// TrackEventHandler records a public page event. It always answers
// {"success": true} so that pages cannot probe which agents exist.
func TrackEventHandler(directory *agents.Directory) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		logger := ctx.Logger

		var params TrackParams
		if err := json.Unmarshal(ctx.Body(), &params); err != nil {
			logger.Warn("Discarded unreadable beacon", slog.Any("error", err))
			return discard(ctx, "unreadable")
		}

		if !analytics.ValidEventType(params.EventType) {
			logger.Debug("Discarded beacon with unknown event type",
				slog.String("event_type", params.EventType))
			return discard(ctx, "unknown_event_type")
		}

		exists, err := directory.Exists(params.UserID)
		if err != nil {
			logger.Error("Failed to look up beacon agent",
				slog.Uint64("agent_id", uint64(params.UserID)),
				slog.Any("error", err))
			return acknowledge(ctx)
		}
		if !exists {
			logger.Debug("Discarded beacon for unknown agent",
				slog.Uint64("agent_id", uint64(params.UserID)))
			return discard(ctx, "unknown_agent")
		}

		userAgent := ctx.Get("X-Forwarded-User-Agent")
		if userAgent == "" {
			userAgent = ctx.Get(fiber.HeaderUserAgent)
		}
		device := useragent.Classify(userAgent)
		if device == useragent.Bot {
			logger.Debug("Discarded crawler beacon", slog.String("user_agent", userAgent))
			return discard(ctx, "crawler")
		}
		referrer := strings.TrimSpace(params.Referrer)
		if referrer == "" {
			referrer = ctx.Get(fiber.HeaderReferer)
		}

		_, err = analytics.TrackPublic(ctx.DB(), logger, analytics.TrackInput{
			AgentID:   params.UserID,
			EventType: params.EventType,
			ListingID: params.ListingID,
			Source:    params.Source,
			Device:    string(device),
			IPAddress: clientIP(ctx.Ctx),
			UserAgent: userAgent,
			Referrer:  referrer,
		}, time.Now())
		if err != nil {
			logger.Error("Failed to record beacon",
				slog.Uint64("agent_id", uint64(params.UserID)),
				slog.Any("error", err))
		}

		return acknowledge(ctx)
	}
}

func discard(ctx *cartridge.Context, reason string) error {
	metrics.BeaconsDiscarded.WithLabelValues(reason).Inc()
	return acknowledge(ctx)
}

func acknowledge(ctx *cartridge.Context) error {
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// browserFetchSites are the Sec-Fetch-Site values a browser sends with a beacon.
var browserFetchSites = map[string]bool{
	"cross-site":  true,
	"same-site":   true,
	"same-origin": true,
	"none":        true,
}

// BeaconGuards drops beacons that were not sent by a browser. Requests
// without a known Sec-Fetch-Site (curl, scripts, browsers too old to send
// fetch metadata) are acknowledged like any other beacon but never stored.
func BeaconGuards() []fiber.Handler {
	return []fiber.Handler{func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost || browserFetchSites[strings.ToLower(c.Get("Sec-Fetch-Site"))] {
			return c.Next()
		}
		metrics.BeaconsDiscarded.WithLabelValues("no_fetch_metadata").Inc()
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
	}}
}
