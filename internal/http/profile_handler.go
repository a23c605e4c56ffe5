package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"agentlinker/internal/agents"
	"agentlinker/internal/locations"
)

type profileRequest struct {
	DisplayName         *string `json:"display_name" validate:"omitempty,max=80"`
	Phone               *string `json:"phone" validate:"omitempty,max=32"`
	Bio                 *string `json:"bio" validate:"omitempty,max=1000"`
	AvatarURL           *string `json:"avatar_url" validate:"omitempty,url"`
	BrandColor          *string `json:"brand_color" validate:"omitempty,hexcolor"`
	City                *string `json:"city" validate:"omitempty,max=80"`
	Region              *string `json:"region" validate:"omitempty,max=80"`
	CountryCode         *string `json:"country_code" validate:"omitempty,len=2,alpha"`
	ResponseTimeMinutes *int    `json:"response_time_minutes" validate:"omitempty,gte=0,lte=10080"`
}

// ProfileShowAction returns the authenticated agent's profile.
func ProfileShowAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"agent":             agent,
		"location":          locations.Format(agent.City, agent.Region, agent.CountryCode),
		"responseTimeLabel": agents.ResponseTimeLabel(agent.ResponseTimeMinutes),
	})
}

// ProfileUpdateAction updates the display fields of the authenticated agent.
func ProfileUpdateAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}

	var req profileRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}

	if req.CountryCode != nil && *req.CountryCode != "" && !locations.ValidCountry(*req.CountryCode) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "country_code is not a known country",
			"fields": []string{"country_code"},
		})
	}

	updated, err := agents.UpdateProfile(ctx.DB(), agent.ID, agents.ProfileUpdate{
		DisplayName:         trimmed(req.DisplayName),
		Phone:               trimmed(req.Phone),
		Bio:                 req.Bio,
		AvatarURL:           trimmed(req.AvatarURL),
		BrandColor:          trimmed(req.BrandColor),
		City:                trimmed(req.City),
		Region:              trimmed(req.Region),
		CountryCode:         trimmed(req.CountryCode),
		ResponseTimeMinutes: req.ResponseTimeMinutes,
	})
	if err != nil {
		ctx.Logger.Error("Failed to update profile", slog.Uint64("agent_id", uint64(agent.ID)), slog.Any("error", err))
		return internalError(ctx)
	}

	return ctx.JSON(fiber.Map{
		"agent":             updated,
		"location":          locations.Format(updated.City, updated.Region, updated.CountryCode),
		"responseTimeLabel": agents.ResponseTimeLabel(updated.ResponseTimeMinutes),
	})
}
