package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"agentlinker/internal/leads"
)

type leadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted qualified closed"`
}

// LeadsIndexAction lists the agent's leads, newest first, optionally filtered by ?status=.
func LeadsIndexAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}

	status := ctx.Query("status")
	if status != "" && !leads.ValidStatus(status) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status filter",
		})
	}

	result, err := leads.ListForAgent(ctx.DB(), agent.ID, leads.Status(status))
	if err != nil {
		ctx.Logger.Error("Failed to list leads", slog.Any("error", err))
		return internalError(ctx)
	}
	return ctx.JSON(fiber.Map{"leads": result})
}

// LeadUpdateAction changes a lead's pipeline status.
func LeadUpdateAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}
	id, ok := paramID(ctx)
	if !ok {
		return invalidID(ctx)
	}

	var req leadStatusRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}

	lead, err := leads.UpdateStatus(ctx.DB(), agent.ID, id, leads.Status(req.Status))
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			return notFound(ctx, "Lead")
		}
		ctx.Logger.Error("Failed to update lead", slog.Any("error", err))
		return internalError(ctx)
	}
	return ctx.JSON(fiber.Map{"lead": lead})
}

// LeadDeleteAction removes one of the agent's leads.
func LeadDeleteAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}
	id, ok := paramID(ctx)
	if !ok {
		return invalidID(ctx)
	}

	if err := leads.Delete(ctx.DB(), agent.ID, id); err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			return notFound(ctx, "Lead")
		}
		ctx.Logger.Error("Failed to delete lead", slog.Any("error", err))
		return internalError(ctx)
	}
	return ctx.JSON(fiber.Map{"success": true})
}
