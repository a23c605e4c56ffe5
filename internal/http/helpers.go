package http

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"agentlinker/internal/agents"
	"agentlinker/internal/http/middleware"
	"agentlinker/internal/validation"
)

// currentAgent loads the authenticated agent. The token only carries the id,
// so tier changes apply without reissuing it.
func currentAgent(ctx *cartridge.Context) (*agents.Agent, error) {
	id := middleware.CurrentAgentID(ctx.Ctx)
	if id == 0 {
		return nil, agents.ErrAgentNotFound
	}
	return agents.FindByID(ctx.DB(), id)
}

// respondAgentError maps a failed currentAgent lookup to a response.
func respondAgentError(ctx *cartridge.Context, err error) error {
	if errors.Is(err, agents.ErrAgentNotFound) {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}
	ctx.Logger.Error("Failed to load agent", slog.Any("error", err))
	return internalError(ctx)
}

// parseBody decodes and validates the JSON body into dst.
// It writes the 400 response itself and returns false when the body is unusable.
func parseBody(ctx *cartridge.Context, dst interface{}) (bool, error) {
	if err := ctx.BodyParser(dst); err != nil {
		return false, ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validation.ValidateStruct(dst); err != nil {
		return false, validationFailed(ctx, err)
	}
	return true, nil
}

func validationFailed(ctx *cartridge.Context, err error) error {
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  verr.Error(),
			"fields": verr.FieldNames(),
		})
	}
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// paramID reads a positive :id route parameter.
func paramID(ctx *cartridge.Context) (uint, bool) {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

func invalidID(ctx *cartridge.Context) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid id",
	})
}

func notFound(ctx *cartridge.Context, what string) error {
	return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": what + " not found",
	})
}

func internalError(ctx *cartridge.Context) error {
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func paymentRequired(ctx *cartridge.Context, err error) error {
	return ctx.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
		"error":   err.Error(),
		"upgrade": true,
	})
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
