package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-enrollment-api/internal/utils"
)

type rateLimitDetails struct {
	Retryable bool   `json:"retryable"`
	Scope     string `json:"scope"`
}

// RateLimit throttles a route group per authenticated caller, falling back to
// the client IP. Limited requests get 429 with a Retry-After header.
func RateLimit(scope string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return scope + ":" + callerKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.Fail(c, fiber.StatusTooManyRequests, "too many requests, slow down", rateLimitDetails{
				Retryable: true,
				Scope:     scope,
			})
		},
	})
}

func callerKey(c *fiber.Ctx) string {
	if id := UserIDFromLocals(c); id != 0 {
		return "user:" + strconv.FormatUint(uint64(id), 10)
	}
	return "ip:" + c.IP()
}
