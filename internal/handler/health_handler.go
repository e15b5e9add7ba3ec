package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-enrollment-api/internal/config"
	"github.com/noah-isme/gema-enrollment-api/internal/utils"
)

// DependencyCheck pings one backing service. Optional dependencies report
// "degraded" instead of failing the whole check.
type DependencyCheck struct {
	Name     string
	Optional bool
	Ping     func(ctx context.Context) error
}

// DependencyStatus is the outcome of one DependencyCheck.
type DependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Service      string                      `json:"service"`
	Environment  string                      `json:"environment"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// HealthCheck pings each dependency. A failed required dependency answers 503
// so load balancers stop routing enrollment traffic to this node.
func HealthCheck(cfg config.Config, checks ...DependencyCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if len(checks) > 0 {
			payload.Dependencies = make(map[string]DependencyStatus, len(checks))
		}

		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				payload.Dependencies[check.Name] = DependencyStatus{Status: "down", Error: err.Error()}
				switch {
				case !check.Optional:
					payload.Status = "down"
				case payload.Status == "ok":
					payload.Status = "degraded"
				}
				continue
			}
			payload.Dependencies[check.Name] = DependencyStatus{Status: "up"}
		}

		status := fiber.StatusOK
		if payload.Status == "down" {
			status = fiber.StatusServiceUnavailable
		}
		return utils.SendSuccessWithStatus(c, status, "service "+payload.Status, payload)
	}
}
