package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"agentlinker/internal/bookings"
)

type bookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed cancelled completed"`
}

// BookingsIndexAction lists the agent's bookings by scheduled time.
func BookingsIndexAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}

	status := ctx.Query("status")
	if status != "" && !bookings.ValidStatus(status) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status filter",
		})
	}

	result, err := bookings.ListForAgent(ctx.DB(), agent.ID, bookings.Status(status))
	if err != nil {
		ctx.Logger.Error("Failed to list bookings", slog.Any("error", err))
		return internalError(ctx)
	}
	return ctx.JSON(fiber.Map{"bookings": result})
}

// BookingUpdateAction confirms, cancels or completes a booking.
func BookingUpdateAction(ctx *cartridge.Context) error {
	agent, err := currentAgent(ctx)
	if err != nil {
		return respondAgentError(ctx, err)
	}
	id, ok := paramID(ctx)
	if !ok {
		return invalidID(ctx)
	}

	var req bookingStatusRequest
	if ok, err := parseBody(ctx, &req); !ok {
		return err
	}

	booking, err := bookings.UpdateStatus(ctx.DB(), agent.ID, id, bookings.Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrBookingNotFound):
			return notFound(ctx, "Booking")
		case errors.Is(err, bookings.ErrInvalidTransition):
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		ctx.Logger.Error("Failed to update booking", slog.Any("error", err))
		return internalError(ctx)
	}
	return ctx.JSON(fiber.Map{"booking": booking})
}
