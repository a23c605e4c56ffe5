package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"agentlinker/internal/metrics"
)

// RequestMetrics records request count and latency per matched route.
func RequestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		metrics.ObserveRequest(route, c.Method(), status, time.Since(start))
		return err
	}
}
