package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"mailfan/config"
	"mailfan/utils"
)

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// RateLimiter throttles requests per client IP: cfg.RateLimit requests per
// cfg.RateWindowSec window, with burst up to the full allowance.
func RateLimiter(cfg config.ServerConfig) fiber.Handler {
	window := time.Duration(cfg.RateWindowSec) * time.Second

	var (
		mu       sync.Mutex
		visitors = make(map[string]*visitor)
	)

	// Evict idle entries so the map does not grow with every address seen.
	go func() {
		for range time.Tick(5 * time.Minute) {
			evicted := 0
			mu.Lock()
			for ip, v := range visitors {
				if time.Since(v.seen) > 10*time.Minute {
					delete(visitors, ip)
					evicted++
				}
			}
			mu.Unlock()
			if evicted > 0 {
				utils.Log.Debugw("rate limiter evicted idle clients", "count", evicted)
			}
		}
	}()

	return func(c *fiber.Ctx) error {
		ip := c.IP()

		mu.Lock()
		v, ok := visitors[ip]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(rate.Every(window/time.Duration(cfg.RateLimit)), cfg.RateLimit)}
			visitors[ip] = v
		}
		v.seen = time.Now()
		mu.Unlock()

		if !v.limiter.Allow() {
			utils.Log.Warnw("rate limit exceeded", "ip", ip, "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}
		return c.Next()
	}
}
