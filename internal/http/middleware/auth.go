package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"agentlinker/internal/auth"
)

const agentIDKey = "agent_id"

// AgentAuth validates the dashboard bearer token.
// Expects: Authorization: Bearer <jwt>
func AgentAuth(secret string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Authorization header",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid Authorization header format. Expected: Bearer <token>",
			})
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token is empty",
			})
		}

		claims, err := auth.ParseToken(secret, token)
		if err != nil {
			logger.Debug("Rejected bearer token", slog.Any("error", err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(agentIDKey, claims.AgentID)
		return c.Next()
	}
}

// CurrentAgentID returns the authenticated agent, or 0 outside AgentAuth.
func CurrentAgentID(c *fiber.Ctx) uint {
	id, _ := c.Locals(agentIDKey).(uint)
	return id
}
