package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"agentlinker/internal/agents"
	"agentlinker/internal/config"
	"agentlinker/internal/subscriptions"
	"agentlinker/internal/tiers"
)

// SignatureHeader carries the payments provider's HMAC of the webhook body.
const SignatureHeader = "X-Signature"

// BillingPlansAction lists every plan with its limits and price.
func BillingPlansAction(ctx *cartridge.Context) error {
	return ctx.JSON(fiber.Map{"plans": tiers.All()})
}

// BillingUsageAction reports the agent's consumption against its plan.
func BillingUsageAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}

	usage, err := subscriptions.UsageFor(ctx.DB(), agent, time.Now())
	if err != nil {
		ctx.Logger.Error("Failed to compute usage", slog.Uint64("agent_id", uint64(agent.ID)), slog.Any("error", err))
		return internalError(ctx)
	}

	response := fiber.Map{"usage": usage}
	sub, err := subscriptions.FindByAgent(ctx.DB(), agent.ID)
	if err == nil {
		response["subscription"] = sub
	} else if !errors.Is(err, subscriptions.ErrSubscriptionNotFound) {
		ctx.Logger.Error("Failed to load subscription", slog.Any("error", err))
		return internalError(ctx)
	}

	return ctx.JSON(response)
}

// BillingWebhookAction applies a signed subscription change from the payments provider.
func BillingWebhookAction(ctx *cartridge.Context) error {
	body := ctx.Body()

	if err := subscriptions.VerifySignature(config.GetConfig().WebhookSecret, body, ctx.Get(SignatureHeader)); err != nil {
		ctx.Logger.Warn("Rejected webhook with bad signature", slog.String("ip", ctx.IP()))
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid signature",
		})
	}

	event, err := subscriptions.ParseWebhook(body)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if _, err := subscriptions.ApplyWebhook(ctx.DB(), ctx.Logger, event); err != nil {
		switch {
		case errors.Is(err, subscriptions.ErrUnsupportedEvent):
			ctx.Logger.Info("Ignoring webhook event", slog.String("type", event.Type))
			return ctx.JSON(fiber.Map{"received": true, "ignored": true})
		case errors.Is(err, subscriptions.ErrMalformedEvent):
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, agents.ErrAgentNotFound):
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown agent",
			})
		}
		ctx.Logger.Error("Failed to apply webhook", slog.String("event_id", event.ID), slog.Any("error", err))
		return internalError(ctx)
	}

	return ctx.JSON(fiber.Map{"received": true})
}
