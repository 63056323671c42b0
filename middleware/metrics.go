package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"mailfan/metrics"
	"mailfan/utils"
)

// Metrics records request latency per method/route/status.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// The app's error handler has not run yet, so the response status
		// still reads 200 for failed requests; mirror the mapped code.
		status := c.Response().StatusCode()
		if err != nil {
			switch e := err.(type) {
			case *utils.AppError:
				status = e.Code
			case *fiber.Error:
				status = e.Code
			default:
				status = fiber.StatusInternalServerError
			}
		}

		metrics.RecordHTTPRequestDuration(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start))
		return err
	}
}
